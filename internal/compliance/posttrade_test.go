package compliance

import (
	"errors"
	"testing"
)

func TestBuildPostTrade_NewPosition(t *testing.T) {
	snap := snapshot(1_000_000)

	post, err := BuildPostTrade(snap, trade("ALP", 100, 50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(post.Positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(post.Positions))
	}
	p := post.Positions[0]
	if p.Ticker != "ALP" || !p.Quantity.Equal(d(100)) || !p.MarketValue.Equal(d(5000)) {
		t.Errorf("unexpected position: %+v", p)
	}
	if !post.NAV.Equal(d(1_005_000)) {
		t.Errorf("expected NAV 1,005,000, got %s", post.NAV)
	}
}

func TestBuildPostTrade_RevaluesAtTradePrice(t *testing.T) {
	// Existing holding 100 @ 50; buy 50 more @ 60. The whole post-trade
	// position is valued at the trade price: 150 * 60 = 9000.
	snap := snapshot(995_000, pos("ALP", 100, 50))

	post, err := BuildPostTrade(snap, trade("ALP", 50, 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := post.Positions[0]
	if !p.Quantity.Equal(d(150)) {
		t.Errorf("expected quantity 150, got %s", p.Quantity)
	}
	if !p.Price.Equal(d(60)) {
		t.Errorf("expected price 60, got %s", p.Price)
	}
	if !p.MarketValue.Equal(d(9000)) {
		t.Errorf("expected market value 9000, got %s", p.MarketValue)
	}
	if !post.NAV.Equal(d(1_004_000)) {
		t.Errorf("expected NAV 1,004,000, got %s", post.NAV)
	}
}

func TestBuildPostTrade_FullCloseDropsPosition(t *testing.T) {
	snap := snapshot(900_000, pos("ALP", 100, 100), pos("BET", 50, 100))

	post, err := BuildPostTrade(snap, trade("ALP", -100, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(post.Positions) != 1 || post.Positions[0].Ticker != "BET" {
		t.Errorf("expected only BET to remain, got %+v", post.Positions)
	}
}

func TestBuildPostTrade_CashHeldConstant(t *testing.T) {
	snap := snapshot(500_000, pos("ALP", 100, 100))

	post, err := BuildPostTrade(snap, trade("ALP", 100, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !post.Cash.Equal(snap.Cash) {
		t.Errorf("cash must be unchanged: pre %s, post %s", snap.Cash, post.Cash)
	}
}

func TestBuildPostTrade_PositionsStaySorted(t *testing.T) {
	snap := snapshot(900_000, pos("ALP", 100, 100), pos("GAM", 100, 100))

	post, err := BuildPostTrade(snap, trade("BET", 100, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 1; i < len(post.Positions); i++ {
		if post.Positions[i-1].Ticker >= post.Positions[i].Ticker {
			t.Fatalf("positions not sorted by ticker: %+v", post.Positions)
		}
	}
}

func TestBuildPostTrade_ZeroDelta(t *testing.T) {
	_, err := BuildPostTrade(snapshot(1_000_000), trade("ALP", 0, 50))
	if !errors.Is(err, ErrZeroQuantity) {
		t.Errorf("expected ErrZeroQuantity, got %v", err)
	}
}

func TestBuildPostTrade_NonPositivePrice(t *testing.T) {
	_, err := BuildPostTrade(snapshot(1_000_000), trade("ALP", 100, -1))
	if !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestBuildPostTrade_SellExceedsHolding(t *testing.T) {
	snap := snapshot(900_000, pos("ALP", 100, 100))

	_, err := BuildPostTrade(snap, trade("ALP", -150, 100))
	if !errors.Is(err, ErrNegativeQuantity) {
		t.Errorf("expected ErrNegativeQuantity, got %v", err)
	}
}

func TestBuildPostTrade_SellUnheldTicker(t *testing.T) {
	snap := snapshot(1_000_000)

	_, err := BuildPostTrade(snap, trade("ALP", -10, 100))
	if !errors.Is(err, ErrNegativeQuantity) {
		t.Errorf("expected ErrNegativeQuantity, got %v", err)
	}
}

func TestBuildPostTrade_NonPositiveNAV(t *testing.T) {
	// Overdrawn cash with the only position fully closed leaves NAV ≤ 0.
	snap := snapshot(-100, pos("ALP", 1, 50))

	_, err := BuildPostTrade(snap, trade("ALP", -1, 50))
	if !errors.Is(err, ErrNonPositiveNAV) {
		t.Errorf("expected ErrNonPositiveNAV, got %v", err)
	}
}
