package compliance

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fundwatch/compliance-engine/internal/model"
)

var (
	// ErrZeroQuantity is returned when the trade's quantity delta is zero.
	ErrZeroQuantity = errors.New("compliance: quantity delta must be non-zero")

	// ErrInvalidPrice is returned when the trade price is not positive.
	ErrInvalidPrice = errors.New("compliance: trade price must be positive")

	// ErrNegativeQuantity is returned when a sell exceeds the held quantity.
	// UCITS funds do not short; a negative holding would corrupt the NAV.
	ErrNegativeQuantity = errors.New("compliance: trade would result in negative holding")

	// ErrNonPositiveNAV is returned when the post-trade NAV is zero or below.
	ErrNonPositiveNAV = errors.New("compliance: post-trade NAV must be positive")
)

// BuildPostTrade derives the hypothetical portfolio that would exist after
// the trade. The input snapshot is never mutated; positions are copied into
// a fresh snapshot with the trade delta applied.
//
// An increased existing position is re-valued in full at the trade price —
// the trade price replaces the prior basis for valuation purposes. (The
// blended weighted-average alternative was considered and rejected as the
// more complex convention.) A position whose quantity reaches exactly zero
// is dropped, keeping one position per ticker with no degenerate rows.
//
// NAV is recomputed as cash (held constant; settlement effects are out of
// scope) plus the sum of post-trade market values, so the NAV invariant
// holds by construction.
func BuildPostTrade(snap model.PortfolioSnapshot, req model.TradeRequest) (model.PortfolioSnapshot, error) {
	if req.QuantityDelta.IsZero() {
		return model.PortfolioSnapshot{}, ErrZeroQuantity
	}
	if req.TradePrice.LessThanOrEqual(decimal.Zero) {
		return model.PortfolioSnapshot{}, ErrInvalidPrice
	}

	positions := make([]model.Position, 0, len(snap.Positions)+1)
	found := false

	for _, p := range snap.Positions {
		if p.Ticker != req.Ticker {
			positions = append(positions, p)
			continue
		}
		found = true

		newQty := p.Quantity.Add(req.QuantityDelta)
		if newQty.IsNegative() {
			return model.PortfolioSnapshot{}, fmt.Errorf("%w: %s holds %s, sell of %s requested",
				ErrNegativeQuantity, req.Ticker, p.Quantity, req.QuantityDelta.Abs())
		}
		if newQty.IsZero() {
			continue // position fully closed
		}

		positions = append(positions, model.Position{
			FundID:      snap.FundID,
			Ticker:      p.Ticker,
			Quantity:    newQty,
			Price:       req.TradePrice,
			MarketValue: newQty.Mul(req.TradePrice),
		})
	}

	if !found {
		if req.QuantityDelta.IsNegative() {
			return model.PortfolioSnapshot{}, fmt.Errorf("%w: %s is not held",
				ErrNegativeQuantity, req.Ticker)
		}
		positions = append(positions, model.Position{
			FundID:      snap.FundID,
			Ticker:      req.Ticker,
			Quantity:    req.QuantityDelta,
			Price:       req.TradePrice,
			MarketValue: req.QuantityDelta.Mul(req.TradePrice),
		})
	}

	// Keep the one-position-per-ticker set ordered regardless of where
	// the trade's ticker landed.
	sort.Slice(positions, func(i, j int) bool { return positions[i].Ticker < positions[j].Ticker })

	nav := snap.Cash
	for _, p := range positions {
		nav = nav.Add(p.MarketValue)
	}
	if nav.LessThanOrEqual(decimal.Zero) {
		return model.PortfolioSnapshot{}, fmt.Errorf("%w: got %s", ErrNonPositiveNAV, nav)
	}

	return model.PortfolioSnapshot{
		FundID:    snap.FundID,
		NAV:       nav,
		Cash:      snap.Cash,
		Positions: positions,
	}, nil
}
