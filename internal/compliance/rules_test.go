package compliance

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fundwatch/compliance-engine/internal/model"
)

func fig(key string, pct float64) model.ExposureFigure {
	return model.ExposureFigure{GroupKey: key, Amount: decimal.Zero, Pct: d(pct)}
}

func TestCheckBucketLimit_ExcludesIssuersAtThreshold(t *testing.T) {
	// Issuers at exactly 5.00% are outside the bucket (strict >). Nine of
	// them sum to 45% but none counts, so there is no breach.
	ctx := ruleContext{allIssuers: []model.ExposureFigure{
		fig("A", 5), fig("B", 5), fig("C", 5), fig("D", 5), fig("E", 5),
		fig("F", 5), fig("G", 5), fig("H", 5), fig("I", 5),
	}}

	if b := checkBucketLimit(DefaultLimits(), ctx); b != nil {
		t.Errorf("expected no breach, got %+v", b)
	}
}

func TestCheckBucketLimit_SumAtLimitDoesNotBreach(t *testing.T) {
	// 8 + 8 + 8 + 8 + 8 = 40, exactly the limit.
	ctx := ruleContext{allIssuers: []model.ExposureFigure{
		fig("A", 8), fig("B", 8), fig("C", 8), fig("D", 8), fig("E", 8),
	}}

	if b := checkBucketLimit(DefaultLimits(), ctx); b != nil {
		t.Errorf("expected no breach at exactly 40%%, got %+v", b)
	}
}

func TestCheckBucketLimit_SumOverLimitBreaches(t *testing.T) {
	ctx := ruleContext{allIssuers: []model.ExposureFigure{
		fig("A", 8), fig("B", 8), fig("C", 8), fig("D", 8), fig("E", 8.01),
	}}

	b := checkBucketLimit(DefaultLimits(), ctx)
	if b == nil {
		t.Fatal("expected breach at 40.01%")
	}
	if b.RuleID != RuleBucket {
		t.Errorf("expected rule_id=%s, got %s", RuleBucket, b.RuleID)
	}
	if !b.ActualPct.Equal(d(40.01)) {
		t.Errorf("expected actual_pct=40.01, got %s", b.ActualPct)
	}
}

func TestCheckIssuerLimit_OnlyTradedIssuerConsidered(t *testing.T) {
	// A legacy holding over the limit does not fire the issuer rule when
	// the trade touches a different issuer.
	ctx := ruleContext{
		issuer: fig("Beta Corp", 4),
		allIssuers: []model.ExposureFigure{
			fig("Alpha Corp", 12),
			fig("Beta Corp", 4),
		},
	}

	if b := checkIssuerLimit(DefaultLimits(), ctx); b != nil {
		t.Errorf("expected no breach for the traded issuer at 4%%, got %+v", b)
	}
}

func TestCheckGroupLimit_Breaches(t *testing.T) {
	ctx := ruleContext{group: fig("Alpha Group", 22)}

	b := checkGroupLimit(DefaultLimits(), ctx)
	if b == nil {
		t.Fatal("expected breach")
	}
	if !b.LimitPct.Equal(d(20)) || !b.ActualPct.Equal(d(22)) {
		t.Errorf("unexpected breach figures: %+v", b)
	}
}
