// Package store defines the persistence interface for the compliance
// service. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/fundwatch/compliance-engine/internal/model"
)

// ErrAssetNotFound is returned when a ticker is absent from master data.
var ErrAssetNotFound = errors.New("store: asset not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Asset master ---

	// UpsertAsset creates or replaces a master data record.
	UpsertAsset(ctx context.Context, rec *model.AssetRecord) error

	// GetAsset retrieves a master data record by ticker.
	// Returns ErrAssetNotFound when the ticker is unknown.
	GetAsset(ctx context.Context, ticker string) (*model.AssetRecord, error)

	// ListAssets returns all master data records, ordered by ticker.
	ListAssets(ctx context.Context) ([]model.AssetRecord, error)

	// --- Fund portfolio ---

	// GetSnapshot returns a fund's current portfolio: cash plus positions
	// ordered by ticker, with NAV derived. An unknown fund yields an
	// empty snapshot, not an error.
	GetSnapshot(ctx context.Context, fundID string) (*model.PortfolioSnapshot, error)

	// UpsertPosition creates or replaces one holding. A zero quantity
	// removes the position.
	UpsertPosition(ctx context.Context, pos *model.Position) error

	// SetCash sets a fund's cash balance.
	SetCash(ctx context.Context, fundID string, cash decimal.Decimal) error

	// ApplyTrade applies an approved trade to the fund's positions:
	// quantity adjusted by the delta, holding re-valued at the trade
	// price, position removed when the quantity reaches zero.
	ApplyTrade(ctx context.Context, req model.TradeRequest) error

	// --- Exposure retrieval ---

	// GetFundExposures returns the fund's current exposure amounts to one
	// issuer and one issuer group. Positions whose ticker is missing from
	// master data contribute zero.
	GetFundExposures(ctx context.Context, fundID, issuerName, issuerGroup string) (issuer, group decimal.Decimal, err error)

	// --- Immutable audit log ---

	// InsertCheckRecord appends an immutable compliance check record.
	InsertCheckRecord(ctx context.Context, rec *model.CheckRecord) error

	// GetCheckRecordsByFund returns all check records for a fund in
	// chronological order.
	GetCheckRecordsByFund(ctx context.Context, fundID string) ([]model.CheckRecord, error)
}
