package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fundwatch/compliance-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[string]model.AssetRecord
	funds  map[string]*fundState
	checks []model.CheckRecord
}

type fundState struct {
	cash      decimal.Decimal
	positions map[string]model.Position // keyed by ticker
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets: make(map[string]model.AssetRecord),
		funds:  make(map[string]*fundState),
	}
}

func (s *MemoryStore) fund(fundID string) *fundState {
	f, ok := s.funds[fundID]
	if !ok {
		f = &fundState{positions: make(map[string]model.Position)}
		s.funds[fundID] = f
	}
	return f
}

// --- Asset master ---

func (s *MemoryStore) UpsertAsset(_ context.Context, rec *model.AssetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assets[rec.Ticker] = *rec
	return nil
}

func (s *MemoryStore) GetAsset(_ context.Context, ticker string) (*model.AssetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.assets[ticker]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, ticker)
	}
	copy := rec
	return &copy, nil
}

func (s *MemoryStore) ListAssets(_ context.Context) ([]model.AssetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickers := make([]string, 0, len(s.assets))
	for t := range s.assets {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	records := make([]model.AssetRecord, 0, len(tickers))
	for _, t := range tickers {
		records = append(records, s.assets[t])
	}
	return records, nil
}

// --- Fund portfolio ---

func (s *MemoryStore) GetSnapshot(_ context.Context, fundID string) (*model.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &model.PortfolioSnapshot{
		FundID:    fundID,
		Cash:      decimal.Zero,
		Positions: []model.Position{},
	}

	f, ok := s.funds[fundID]
	if !ok {
		snap.NAV = decimal.Zero
		return snap, nil
	}

	tickers := make([]string, 0, len(f.positions))
	for t := range f.positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	nav := f.cash
	for _, t := range tickers {
		p := f.positions[t]
		nav = nav.Add(p.MarketValue)
		snap.Positions = append(snap.Positions, p)
	}

	snap.Cash = f.cash
	snap.NAV = nav
	return snap, nil
}

func (s *MemoryStore) UpsertPosition(_ context.Context, pos *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.fund(pos.FundID)
	if pos.Quantity.IsZero() {
		delete(f.positions, pos.Ticker)
		return nil
	}

	p := *pos
	p.MarketValue = p.Quantity.Mul(p.Price)
	f.positions[p.Ticker] = p
	return nil
}

func (s *MemoryStore) SetCash(_ context.Context, fundID string, cash decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fund(fundID).cash = cash
	return nil
}

func (s *MemoryStore) ApplyTrade(_ context.Context, req model.TradeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.fund(req.FundID)
	qty := req.QuantityDelta
	if existing, ok := f.positions[req.Ticker]; ok {
		qty = existing.Quantity.Add(req.QuantityDelta)
	}
	if qty.IsNegative() {
		return fmt.Errorf("store: trade would make %s quantity negative", req.Ticker)
	}
	if qty.IsZero() {
		delete(f.positions, req.Ticker)
		return nil
	}

	f.positions[req.Ticker] = model.Position{
		FundID:      req.FundID,
		Ticker:      req.Ticker,
		Quantity:    qty,
		Price:       req.TradePrice,
		MarketValue: qty.Mul(req.TradePrice),
	}
	return nil
}

// --- Exposure retrieval ---

// GetFundExposures sums position market value conditionally by issuer name
// and issuer group. Tickers absent from master data contribute zero.
func (s *MemoryStore) GetFundExposures(_ context.Context, fundID, issuerName, issuerGroup string) (decimal.Decimal, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issuer := decimal.Zero
	group := decimal.Zero

	f, ok := s.funds[fundID]
	if !ok {
		return issuer, group, nil
	}

	for _, p := range f.positions {
		rec, ok := s.assets[p.Ticker]
		if !ok {
			continue
		}
		if rec.IssuerName == issuerName {
			issuer = issuer.Add(p.MarketValue)
		}
		if rec.IssuerGroup == issuerGroup {
			group = group.Add(p.MarketValue)
		}
	}
	return issuer, group, nil
}

// --- Immutable audit log ---

func (s *MemoryStore) InsertCheckRecord(_ context.Context, rec *model.CheckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checks = append(s.checks, *rec)
	return nil
}

func (s *MemoryStore) GetCheckRecordsByFund(_ context.Context, fundID string) ([]model.CheckRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.CheckRecord
	for _, c := range s.checks {
		if c.FundID == fundID {
			result = append(result, c)
		}
	}
	return result, nil
}
