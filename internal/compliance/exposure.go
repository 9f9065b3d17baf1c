package compliance

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fundwatch/compliance-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Exposures holds the issuer-level and group-level aggregates for one
// post-trade snapshot, each sorted by group key.
type Exposures struct {
	ByIssuer []model.ExposureFigure
	ByGroup  []model.ExposureFigure
}

// Issuer returns the figure for one issuer, or a zero figure when the
// issuer has no post-trade exposure (e.g. the position was fully closed).
func (e Exposures) Issuer(name string) model.ExposureFigure {
	return findFigure(e.ByIssuer, name)
}

// Group returns the figure for one issuer group, or a zero figure.
func (e Exposures) Group(name string) model.ExposureFigure {
	return findFigure(e.ByGroup, name)
}

func findFigure(figures []model.ExposureFigure, key string) model.ExposureFigure {
	for _, f := range figures {
		if f.GroupKey == key {
			return f
		}
	}
	return model.ExposureFigure{GroupKey: key, Amount: decimal.Zero, Pct: decimal.Zero}
}

// AggregateExposures groups post-trade positions by issuer name and by
// issuer group, summing market value per key. Pct = amount / NAV on a
// 0–100 scale, rounded to PctScale.
//
// Output is sorted by group key, so identical inputs always yield identical
// aggregates regardless of position ordering. A held ticker missing from
// master data has no issuer to attribute to and contributes zero exposure
// (its market value still counts toward NAV).
func AggregateExposures(snap model.PortfolioSnapshot, assets AssetLookup) Exposures {
	byIssuer := make(map[string]decimal.Decimal)
	byGroup := make(map[string]decimal.Decimal)

	for _, p := range snap.Positions {
		rec, ok := assets.LookupAsset(p.Ticker)
		if !ok {
			continue
		}
		byIssuer[rec.IssuerName] = byIssuer[rec.IssuerName].Add(p.MarketValue)
		byGroup[rec.IssuerGroup] = byGroup[rec.IssuerGroup].Add(p.MarketValue)
	}

	return Exposures{
		ByIssuer: toFigures(byIssuer, snap.NAV),
		ByGroup:  toFigures(byGroup, snap.NAV),
	}
}

func toFigures(amounts map[string]decimal.Decimal, nav decimal.Decimal) []model.ExposureFigure {
	keys := make([]string, 0, len(amounts))
	for k := range amounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	figures := make([]model.ExposureFigure, 0, len(keys))
	for _, k := range keys {
		figures = append(figures, model.ExposureFigure{
			GroupKey: k,
			Amount:   amounts[k],
			Pct:      pctOfNAV(amounts[k], nav),
		})
	}
	return figures
}

// pctOfNAV returns amount/nav as a percentage rounded to PctScale.
func pctOfNAV(amount, nav decimal.Decimal) decimal.Decimal {
	return amount.Div(nav).Mul(hundred).Round(PctScale)
}
