package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fundwatch/compliance-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for asset master records and fund snapshots. Writes go to the
// primary store and invalidate the cache; reads check Redis first then
// fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Asset master ---

func (s *CachedStore) UpsertAsset(ctx context.Context, rec *model.AssetRecord) error {
	if err := s.primary.UpsertAsset(ctx, rec); err != nil {
		return err
	}
	s.cacheAsset(ctx, rec)
	return nil
}

func (s *CachedStore) GetAsset(ctx context.Context, ticker string) (*model.AssetRecord, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, assetKey(ticker)).Bytes()
	if err == nil {
		var rec model.AssetRecord
		if json.Unmarshal(data, &rec) == nil {
			return &rec, nil
		}
	}

	// Cache miss: read from primary.
	rec, err := s.primary.GetAsset(ctx, ticker)
	if err != nil {
		return nil, err
	}

	s.cacheAsset(ctx, rec)
	return rec, nil
}

func (s *CachedStore) ListAssets(ctx context.Context) ([]model.AssetRecord, error) {
	return s.primary.ListAssets(ctx)
}

// --- Fund portfolio (snapshot cached, writes invalidate) ---

func (s *CachedStore) GetSnapshot(ctx context.Context, fundID string) (*model.PortfolioSnapshot, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(fundID)).Bytes()
	if err == nil {
		var snap model.PortfolioSnapshot
		if json.Unmarshal(data, &snap) == nil {
			return &snap, nil
		}
	}

	snap, err := s.primary.GetSnapshot(ctx, fundID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, snapshotKey(fundID), data, s.ttl)
	}
	return snap, nil
}

func (s *CachedStore) UpsertPosition(ctx context.Context, pos *model.Position) error {
	if err := s.primary.UpsertPosition(ctx, pos); err != nil {
		return err
	}
	s.rdb.Del(ctx, snapshotKey(pos.FundID))
	return nil
}

func (s *CachedStore) SetCash(ctx context.Context, fundID string, cash decimal.Decimal) error {
	if err := s.primary.SetCash(ctx, fundID, cash); err != nil {
		return err
	}
	s.rdb.Del(ctx, snapshotKey(fundID))
	return nil
}

func (s *CachedStore) ApplyTrade(ctx context.Context, req model.TradeRequest) error {
	if err := s.primary.ApplyTrade(ctx, req); err != nil {
		return err
	}
	s.rdb.Del(ctx, snapshotKey(req.FundID))
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetFundExposures(ctx context.Context, fundID, issuerName, issuerGroup string) (decimal.Decimal, decimal.Decimal, error) {
	return s.primary.GetFundExposures(ctx, fundID, issuerName, issuerGroup)
}

func (s *CachedStore) InsertCheckRecord(ctx context.Context, rec *model.CheckRecord) error {
	return s.primary.InsertCheckRecord(ctx, rec)
}

func (s *CachedStore) GetCheckRecordsByFund(ctx context.Context, fundID string) ([]model.CheckRecord, error) {
	return s.primary.GetCheckRecordsByFund(ctx, fundID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAsset(ctx context.Context, rec *model.AssetRecord) {
	if data, err := json.Marshal(rec); err == nil {
		s.rdb.Set(ctx, assetKey(rec.Ticker), data, s.ttl)
	}
}

func assetKey(ticker string) string    { return fmt.Sprintf("asset:%s", ticker) }
func snapshotKey(fundID string) string { return fmt.Sprintf("snapshot:%s", fundID) }
