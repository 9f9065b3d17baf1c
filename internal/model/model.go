// Package model defines the core domain types shared across the compliance
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetRecord is a row of security master data. Reference data is owned by
// an upstream system; the engine only reads it.
type AssetRecord struct {
	Ticker        string `json:"ticker" db:"ticker"`
	ISIN          string `json:"isin,omitempty" db:"isin"`
	IssuerName    string `json:"issuer_name" db:"issuer_name"`
	IssuerGroup   string `json:"issuer_group" db:"issuer_group"`
	UCITSEligible bool   `json:"ucits_eligible" db:"ucits_eligible"`
}

// Position is a fund's holding in one security.
// MarketValue is derived and must always equal Quantity × Price.
type Position struct {
	FundID      string          `json:"fund_id" db:"fund_id"`
	Ticker      string          `json:"ticker" db:"ticker"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	Price       decimal.Decimal `json:"price" db:"price"`
	MarketValue decimal.Decimal `json:"market_value" db:"market_value"` // quantity × price
}

// PortfolioSnapshot is the state of one fund: cash plus its positions,
// one per ticker, ordered by ticker. NAV must always equal
// Cash + Σ MarketValue over all positions.
type PortfolioSnapshot struct {
	FundID    string          `json:"fund_id"`
	NAV       decimal.Decimal `json:"nav"`
	Cash      decimal.Decimal `json:"cash"`
	Positions []Position      `json:"positions"`
}

// TradeRequest is a proposed trade to be checked before execution.
// QuantityDelta is signed: positive = buy, negative = sell.
type TradeRequest struct {
	FundID        string          `json:"fund_id"`
	Ticker        string          `json:"ticker"`
	QuantityDelta decimal.Decimal `json:"quantity_delta"`
	TradePrice    decimal.Decimal `json:"trade_price"`
}

// ExposureFigure is an aggregate exposure to one issuer or issuer group.
// Pct is the percentage of NAV on a 0–100 scale, rounded to 2 decimal places.
type ExposureFigure struct {
	GroupKey string          `json:"group_key"`
	Amount   decimal.Decimal `json:"amount"`
	Pct      decimal.Decimal `json:"pct"`
}

// Breach records one regulatory limit violation. Immutable once produced.
type Breach struct {
	RuleID    string          `json:"rule_id"`
	LimitPct  decimal.Decimal `json:"limit_pct"`
	ActualPct decimal.Decimal `json:"actual_pct"`
	Message   string          `json:"message"`
}

// ComplianceResult is the final outcome of one pre-trade evaluation.
// Messages and Breaches preserve rule priority order.
type ComplianceResult struct {
	OverallPass bool     `json:"overall_pass"`
	Messages    []string `json:"messages"`
	Breaches    []Breach `json:"breaches"`
}

// CheckRecord is an immutable audit entry for one evaluation.
// Once created, these are never modified or deleted.
type CheckRecord struct {
	ID            string          `json:"id" db:"id"`
	FundID        string          `json:"fund_id" db:"fund_id"`
	Ticker        string          `json:"ticker" db:"ticker"`
	QuantityDelta decimal.Decimal `json:"quantity_delta" db:"quantity_delta"`
	TradePrice    decimal.Decimal `json:"trade_price" db:"trade_price"`
	OverallPass   bool            `json:"overall_pass" db:"overall_pass"`
	Messages      []string        `json:"messages" db:"messages"`
	Breaches      []Breach        `json:"breaches" db:"breaches"`
	CheckedAt     time.Time       `json:"checked_at" db:"checked_at"`
}
