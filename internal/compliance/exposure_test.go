package compliance

import (
	"testing"
)

func TestAggregateExposures_GroupsByIssuerAndGroup(t *testing.T) {
	// ALP and BT2 are distinct issuers inside the same conglomerate.
	snap := snapshot(700_000,
		pos("ALP", 1000, 100), // Alpha Corp / Alpha Group, 100,000
		pos("BT2", 1500, 100), // Beta Two Corp / Alpha Group, 150,000
		pos("GAM", 500, 100),  // Gamma Corp / Gamma Group, 50,000
	)

	exp := AggregateExposures(snap, testMaster())

	if got := exp.Issuer("Alpha Corp"); !got.Amount.Equal(d(100_000)) || !got.Pct.Equal(d(10)) {
		t.Errorf("Alpha Corp: got amount=%s pct=%s", got.Amount, got.Pct)
	}
	if got := exp.Group("Alpha Group"); !got.Amount.Equal(d(250_000)) || !got.Pct.Equal(d(25)) {
		t.Errorf("Alpha Group: got amount=%s pct=%s", got.Amount, got.Pct)
	}
	if got := exp.Group("Gamma Group"); !got.Amount.Equal(d(50_000)) || !got.Pct.Equal(d(5)) {
		t.Errorf("Gamma Group: got amount=%s pct=%s", got.Amount, got.Pct)
	}
}

func TestAggregateExposures_RoundsPctToTwoDecimals(t *testing.T) {
	// 110,000 / 1,030,000 = 10.6796...% → 10.68%.
	snap := snapshot(920_000, pos("ALP", 1100, 100))

	exp := AggregateExposures(snap, testMaster())

	if got := exp.Issuer("Alpha Corp").Pct; !got.Equal(d(10.68)) {
		t.Errorf("expected 10.68, got %s", got)
	}
}

func TestAggregateExposures_UnknownTickerContributesZero(t *testing.T) {
	// UNK is held but absent from master data: it counts toward NAV (set by
	// the snapshot) but attributes no issuer exposure.
	snap := snapshot(800_000, pos("ALP", 1000, 100), pos("UNK", 1000, 100))

	exp := AggregateExposures(snap, testMaster())

	if len(exp.ByIssuer) != 1 {
		t.Fatalf("expected only Alpha Corp, got %+v", exp.ByIssuer)
	}
	// NAV 1,000,000 includes UNK's 100,000, so ALP sits at 10%, not 11.11%.
	if got := exp.Issuer("Alpha Corp").Pct; !got.Equal(d(10)) {
		t.Errorf("expected 10, got %s", got)
	}
}

func TestAggregateExposures_SortedByKey(t *testing.T) {
	snap := snapshot(700_000,
		pos("GAM", 1000, 100),
		pos("ALP", 1000, 100),
		pos("BET", 1000, 100),
	)

	exp := AggregateExposures(snap, testMaster())

	for i := 1; i < len(exp.ByIssuer); i++ {
		if exp.ByIssuer[i-1].GroupKey >= exp.ByIssuer[i].GroupKey {
			t.Fatalf("issuer figures not sorted: %+v", exp.ByIssuer)
		}
	}
	for i := 1; i < len(exp.ByGroup); i++ {
		if exp.ByGroup[i-1].GroupKey >= exp.ByGroup[i].GroupKey {
			t.Fatalf("group figures not sorted: %+v", exp.ByGroup)
		}
	}
}

func TestExposures_ZeroFigureForAbsentKey(t *testing.T) {
	exp := AggregateExposures(snapshot(1_000_000), testMaster())

	got := exp.Issuer("Alpha Corp")
	if !got.Amount.IsZero() || !got.Pct.IsZero() {
		t.Errorf("expected zero figure, got %+v", got)
	}
	if got.GroupKey != "Alpha Corp" {
		t.Errorf("zero figure should carry the requested key, got %q", got.GroupKey)
	}
}
