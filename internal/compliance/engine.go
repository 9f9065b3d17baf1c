// Package compliance implements the UCITS pre-trade concentration check:
// given a fund's current portfolio and a proposed trade, it derives the
// hypothetical post-trade portfolio, aggregates exposures by issuer and
// issuer group, and evaluates them against the regulatory limits
// (10% single issuer, 20% issuer group, 5/10/40 diversification bucket).
//
// The engine is a pure function of its inputs: it performs no I/O, holds no
// state between calls, and never mutates the snapshot it is given, so
// concurrent callers need no coordination.
//
// All monetary values use shopspring/decimal — never float64 for money.
package compliance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fundwatch/compliance-engine/internal/model"
)

var (
	// ErrInvalidLimits is returned when any configured limit is not positive.
	ErrInvalidLimits = errors.New("compliance: all limit percentages must be positive")

	// ErrUnknownAsset is returned when the traded ticker is absent from
	// the asset master data.
	ErrUnknownAsset = errors.New("compliance: asset not found in master data")

	// ErrIneligibleAsset is returned when the traded asset is not
	// UCITS-eligible.
	ErrIneligibleAsset = errors.New("compliance: asset is not UCITS eligible")
)

// PctScale is the number of decimal places for exposure percentages.
// Percentages are rounded to this scale before limit comparison, so the
// stored, compared, and displayed values can never disagree.
const PctScale int32 = 2

// Limits holds the regulatory thresholds, all on a 0–100 percent scale.
type Limits struct {
	// IssuerLimitPct is the maximum exposure to a single issuer.
	IssuerLimitPct decimal.Decimal

	// GroupLimitPct is the maximum exposure to a single issuer group.
	GroupLimitPct decimal.Decimal

	// BucketThresholdPct selects issuers for the diversification bucket:
	// issuers whose exposure exceeds this threshold are counted.
	BucketThresholdPct decimal.Decimal

	// BucketLimitPct is the maximum combined exposure of all issuers
	// in the diversification bucket.
	BucketLimitPct decimal.Decimal
}

// DefaultLimits returns the standard UCITS thresholds: 10% issuer,
// 20% issuer group, 5/40 diversification bucket.
func DefaultLimits() Limits {
	return Limits{
		IssuerLimitPct:     decimal.NewFromInt(10),
		GroupLimitPct:      decimal.NewFromInt(20),
		BucketThresholdPct: decimal.NewFromInt(5),
		BucketLimitPct:     decimal.NewFromInt(40),
	}
}

// AssetLookup resolves a ticker to its master data record. Implementations
// must be side-effect-free: the engine calls it for the traded ticker and
// for every held ticker during exposure aggregation.
type AssetLookup interface {
	LookupAsset(ticker string) (model.AssetRecord, bool)
}

// MapLookup is an AssetLookup backed by a plain map keyed by ticker.
type MapLookup map[string]model.AssetRecord

// LookupAsset implements AssetLookup.
func (m MapLookup) LookupAsset(ticker string) (model.AssetRecord, bool) {
	rec, ok := m[ticker]
	return rec, ok
}

// Evaluator runs pre-trade compliance checks against a fixed set of limits.
// It is stateless — portfolio state is passed as an argument, not stored.
type Evaluator struct {
	limits Limits
}

// NewEvaluator creates an evaluator with the given limits.
func NewEvaluator(limits Limits) (*Evaluator, error) {
	for _, pct := range []decimal.Decimal{
		limits.IssuerLimitPct,
		limits.GroupLimitPct,
		limits.BucketThresholdPct,
		limits.BucketLimitPct,
	} {
		if pct.LessThanOrEqual(decimal.Zero) {
			return nil, ErrInvalidLimits
		}
	}
	return &Evaluator{limits: limits}, nil
}

// Limits returns the configured thresholds.
func (e *Evaluator) Limits() Limits {
	return e.limits
}

// Evaluate runs the full pre-trade check:
//
//	eligibility gate → post-trade snapshot → exposure aggregation →
//	ordered rule evaluation → result assembly
//
// Eligibility and computation failures terminate immediately with a single
// explanatory message and zero breach records. Once eligibility passes,
// every rule is evaluated exactly once — rules never short-circuit each
// other, so all breaches are reported together.
func (e *Evaluator) Evaluate(snap model.PortfolioSnapshot, req model.TradeRequest, assets AssetLookup) model.ComplianceResult {
	asset, ok := assets.LookupAsset(req.Ticker)
	if !ok {
		return failResult(fmt.Errorf("%w: %s", ErrUnknownAsset, req.Ticker))
	}
	if !asset.UCITSEligible {
		return failResult(fmt.Errorf("%w: %s", ErrIneligibleAsset, req.Ticker))
	}

	post, err := BuildPostTrade(snap, req)
	if err != nil {
		return failResult(err)
	}

	exp := AggregateExposures(post, assets)

	breaches := e.evaluateRules(ruleContext{
		issuer:     exp.Issuer(asset.IssuerName),
		group:      exp.Group(asset.IssuerGroup),
		allIssuers: exp.ByIssuer,
	})

	return assembleResult(breaches)
}

// assembleResult merges breach records into the final outcome. It only
// formats and counts — breaches are never suppressed or reordered.
func assembleResult(breaches []model.Breach) model.ComplianceResult {
	if len(breaches) == 0 {
		return model.ComplianceResult{
			OverallPass: true,
			Messages:    []string{"APPROVED: trade complies with all UCITS concentration limits"},
			Breaches:    []model.Breach{},
		}
	}

	messages := make([]string, 0, len(breaches))
	for _, b := range breaches {
		messages = append(messages, "BREACH ["+b.RuleID+"]: "+b.Message)
	}
	return model.ComplianceResult{
		OverallPass: false,
		Messages:    messages,
		Breaches:    breaches,
	}
}

// failResult is the fail-fast exit for input-validation and computation
// errors: one message, no breach records, no exposure math performed.
func failResult(err error) model.ComplianceResult {
	return model.ComplianceResult{
		OverallPass: false,
		Messages:    []string{"REJECTED: " + err.Error()},
		Breaches:    []model.Breach{},
	}
}
