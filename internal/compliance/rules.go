package compliance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fundwatch/compliance-engine/internal/model"
)

// Rule identifiers, in evaluation priority order.
const (
	RuleIssuer = "issuer_10pct"
	RuleGroup  = "group_20pct"
	RuleBucket = "bucket_5_10_40"
)

// ruleContext carries the aggregates one evaluation needs: the figures for
// the traded asset's issuer and group, plus every issuer figure (the
// diversification bucket rule scans all of them).
type ruleContext struct {
	issuer     model.ExposureFigure
	group      model.ExposureFigure
	allIssuers []model.ExposureFigure
}

// ruleFunc evaluates one regulatory rule, returning zero or one breach.
// All comparisons are strict greater-than against the limit: a value
// exactly at the limit does not breach.
type ruleFunc func(Limits, ruleContext) *model.Breach

// ruleChain is the fixed priority order. Rules are independent: the chain
// is iterated in full, collecting every breach, with no short-circuiting.
var ruleChain = []ruleFunc{
	checkIssuerLimit,
	checkGroupLimit,
	checkBucketLimit,
}

func (e *Evaluator) evaluateRules(ctx ruleContext) []model.Breach {
	var breaches []model.Breach
	for _, rule := range ruleChain {
		if b := rule(e.limits, ctx); b != nil {
			breaches = append(breaches, *b)
		}
	}
	return breaches
}

// checkIssuerLimit enforces the single-issuer concentration limit.
func checkIssuerLimit(limits Limits, ctx ruleContext) *model.Breach {
	if !ctx.issuer.Pct.GreaterThan(limits.IssuerLimitPct) {
		return nil
	}
	return &model.Breach{
		RuleID:    RuleIssuer,
		LimitPct:  limits.IssuerLimitPct,
		ActualPct: ctx.issuer.Pct,
		Message: fmt.Sprintf("issuer %s exposure %s%% exceeds %s%% single-issuer limit",
			ctx.issuer.GroupKey, ctx.issuer.Pct.StringFixed(PctScale), limits.IssuerLimitPct.StringFixed(PctScale)),
	}
}

// checkGroupLimit enforces the single-issuer-group concentration limit.
func checkGroupLimit(limits Limits, ctx ruleContext) *model.Breach {
	if !ctx.group.Pct.GreaterThan(limits.GroupLimitPct) {
		return nil
	}
	return &model.Breach{
		RuleID:    RuleGroup,
		LimitPct:  limits.GroupLimitPct,
		ActualPct: ctx.group.Pct,
		Message: fmt.Sprintf("issuer group %s exposure %s%% exceeds %s%% group limit",
			ctx.group.GroupKey, ctx.group.Pct.StringFixed(PctScale), limits.GroupLimitPct.StringFixed(PctScale)),
	}
}

// checkBucketLimit enforces the 5/10/40 diversification rule: issuers
// individually above the bucket threshold must not collectively exceed the
// bucket limit.
func checkBucketLimit(limits Limits, ctx ruleContext) *model.Breach {
	sum := decimal.Zero
	for _, f := range ctx.allIssuers {
		if f.Pct.GreaterThan(limits.BucketThresholdPct) {
			sum = sum.Add(f.Pct)
		}
	}
	if !sum.GreaterThan(limits.BucketLimitPct) {
		return nil
	}
	return &model.Breach{
		RuleID:    RuleBucket,
		LimitPct:  limits.BucketLimitPct,
		ActualPct: sum.Round(PctScale),
		Message: fmt.Sprintf("issuers above %s%% of NAV sum to %s%%, exceeding %s%% diversification limit",
			limits.BucketThresholdPct.StringFixed(PctScale), sum.StringFixed(PctScale), limits.BucketLimitPct.StringFixed(PctScale)),
	}
}
