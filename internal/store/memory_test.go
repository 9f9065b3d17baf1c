package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundwatch/compliance-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedAssets(t *testing.T, s *MemoryStore) {
	t.Helper()
	ctx := context.Background()
	records := []model.AssetRecord{
		{Ticker: "ALP", ISIN: "US0378331005", IssuerName: "Alpha Corp", IssuerGroup: "Alpha Group", UCITSEligible: true},
		{Ticker: "BT2", ISIN: "DE0007164600", IssuerName: "Beta Two Corp", IssuerGroup: "Alpha Group", UCITSEligible: true},
		{Ticker: "GAM", ISIN: "US0378331005", IssuerName: "Gamma Corp", IssuerGroup: "Gamma Group", UCITSEligible: true},
	}
	for i := range records {
		if err := s.UpsertAsset(ctx, &records[i]); err != nil {
			t.Fatalf("seed asset: %v", err)
		}
	}
}

func TestMemoryStore_AssetRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedAssets(t, s)

	rec, err := s.GetAsset(ctx, "ALP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.IssuerName != "Alpha Corp" || !rec.UCITSEligible {
		t.Errorf("unexpected record: %+v", rec)
	}

	if _, err := s.GetAsset(ctx, "MISSING"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestMemoryStore_ListAssetsSorted(t *testing.T) {
	s := NewMemoryStore()
	seedAssets(t, s)

	records, err := s.ListAssets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i-1].Ticker >= records[i].Ticker {
			t.Fatalf("records not sorted by ticker: %+v", records)
		}
	}
}

func TestMemoryStore_SnapshotDerivesNAV(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SetCash(ctx, "fund-1", d(500_000)); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPosition(ctx, &model.Position{FundID: "fund-1", Ticker: "GAM", Quantity: d(100), Price: d(50)}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPosition(ctx, &model.Position{FundID: "fund-1", Ticker: "ALP", Quantity: d(200), Price: d(100)}); err != nil {
		t.Fatal(err)
	}

	snap, err := s.GetSnapshot(ctx, "fund-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Cash 500,000 + ALP 20,000 + GAM 5,000.
	if !snap.NAV.Equal(d(525_000)) {
		t.Errorf("expected NAV 525,000, got %s", snap.NAV)
	}
	if len(snap.Positions) != 2 || snap.Positions[0].Ticker != "ALP" || snap.Positions[1].Ticker != "GAM" {
		t.Errorf("expected positions sorted by ticker, got %+v", snap.Positions)
	}
	if !snap.Positions[0].MarketValue.Equal(d(20_000)) {
		t.Errorf("expected ALP market value 20,000, got %s", snap.Positions[0].MarketValue)
	}
}

func TestMemoryStore_UnknownFundEmptySnapshot(t *testing.T) {
	s := NewMemoryStore()

	snap, err := s.GetSnapshot(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unknown fund must not error: %v", err)
	}
	if !snap.NAV.IsZero() || len(snap.Positions) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
}

func TestMemoryStore_UpsertPositionZeroQuantityDeletes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.UpsertPosition(ctx, &model.Position{FundID: "fund-1", Ticker: "ALP", Quantity: d(100), Price: d(10)})
	s.UpsertPosition(ctx, &model.Position{FundID: "fund-1", Ticker: "ALP", Quantity: decimal.Zero, Price: d(10)})

	snap, _ := s.GetSnapshot(ctx, "fund-1")
	if len(snap.Positions) != 0 {
		t.Errorf("expected position removed, got %+v", snap.Positions)
	}
}

func TestMemoryStore_ApplyTrade(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.UpsertPosition(ctx, &model.Position{FundID: "fund-1", Ticker: "ALP", Quantity: d(100), Price: d(50)})

	// Buy 50 more at 60: quantity 150, re-valued at the trade price.
	err := s.ApplyTrade(ctx, model.TradeRequest{FundID: "fund-1", Ticker: "ALP", QuantityDelta: d(50), TradePrice: d(60)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, _ := s.GetSnapshot(ctx, "fund-1")
	p := snap.Positions[0]
	if !p.Quantity.Equal(d(150)) || !p.Price.Equal(d(60)) || !p.MarketValue.Equal(d(9000)) {
		t.Errorf("unexpected position after trade: %+v", p)
	}

	// Sell everything: position removed.
	err = s.ApplyTrade(ctx, model.TradeRequest{FundID: "fund-1", Ticker: "ALP", QuantityDelta: d(-150), TradePrice: d(60)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, _ = s.GetSnapshot(ctx, "fund-1")
	if len(snap.Positions) != 0 {
		t.Errorf("expected no positions, got %+v", snap.Positions)
	}

	// Selling what is not held fails.
	err = s.ApplyTrade(ctx, model.TradeRequest{FundID: "fund-1", Ticker: "ALP", QuantityDelta: d(-10), TradePrice: d(60)})
	if err == nil {
		t.Error("expected error for oversell")
	}
}

func TestMemoryStore_GetFundExposures(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedAssets(t, s)

	s.UpsertPosition(ctx, &model.Position{FundID: "fund-1", Ticker: "ALP", Quantity: d(100), Price: d(100)}) // 10,000
	s.UpsertPosition(ctx, &model.Position{FundID: "fund-1", Ticker: "BT2", Quantity: d(50), Price: d(100)})  // 5,000, same group
	s.UpsertPosition(ctx, &model.Position{FundID: "fund-1", Ticker: "UNK", Quantity: d(999), Price: d(100)}) // no master data

	issuer, group, err := s.GetFundExposures(ctx, "fund-1", "Alpha Corp", "Alpha Group")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !issuer.Equal(d(10_000)) {
		t.Errorf("expected issuer exposure 10,000, got %s", issuer)
	}
	if !group.Equal(d(15_000)) {
		t.Errorf("expected group exposure 15,000, got %s", group)
	}
}

func TestMemoryStore_CheckRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	recs := []model.CheckRecord{
		{ID: "c1", FundID: "fund-1", Ticker: "ALP", OverallPass: true, CheckedAt: time.Now()},
		{ID: "c2", FundID: "fund-2", Ticker: "BET", OverallPass: false, CheckedAt: time.Now()},
		{ID: "c3", FundID: "fund-1", Ticker: "GAM", OverallPass: false, CheckedAt: time.Now()},
	}
	for i := range recs {
		if err := s.InsertCheckRecord(ctx, &recs[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.GetCheckRecordsByFund(ctx, "fund-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c1" || got[1].ID != "c3" {
		t.Errorf("unexpected records: %+v", got)
	}
}
