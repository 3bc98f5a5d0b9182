package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskcore/decisioncore/internal/decision"
)

const sampleDoc = `{
  "version": "v1",
  "rules": [
    {"id": "high-amount", "name": "High amount", "expression": "amount > 10000", "weight": 25, "enabled": true},
    {"id": "bad-expr", "name": "Bad", "expression": "amount >>> 1", "weight": 5, "enabled": true},
    {"name": "Missing id", "expression": "true", "weight": 1, "enabled": true},
    {"id": "disabled", "name": "Disabled", "expression": "true", "weight": 1, "enabled": false},
    {"id": "low-weight", "name": "Low", "expression": "amount > 0", "weight": 1, "enabled": true}
  ],
  "thresholds": {"approve_threshold": 30, "review_threshold": 70}
}`

func ctxWithAmount(amount float64) *decision.RuleContext {
	req := &decision.Request{}
	req.Transaction.Amount = amount
	req.Transaction.Currency = "USD"
	req.Transaction.MerchantID = "m1"
	req.Customer.ID = "c1"
	return decision.BuildRuleContext(req, decision.DefaultDerivedFeatures(amount))
}

func TestLoadRulesSkipsBadOnes(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.LoadRulesFromBytes([]byte(sampleDoc)))
	cfg := e.GetCurrentConfig()
	ids := map[string]bool{}
	names := map[string]bool{}
	for _, r := range cfg.Rules {
		ids[r.ID] = true
		names[r.Name] = true
	}
	assert.True(t, ids["high-amount"])
	assert.True(t, ids["low-weight"])
	assert.False(t, ids["bad-expr"], "rule with uncompilable expression must be skipped")
	assert.False(t, names["Missing id"], "rule with missing id must be skipped")
}

func TestPriorityOrderIsWeightDescending(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.LoadRulesFromBytes([]byte(sampleDoc)))
	cfg := e.GetCurrentConfig()
	require.True(t, len(cfg.Rules) >= 2)
	for i := 1; i < len(cfg.Rules); i++ {
		assert.GreaterOrEqual(t, cfg.Rules[i-1].Weight, cfg.Rules[i].Weight)
	}
}

func TestEvaluateRulesTriggersAndAccumulates(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.LoadRulesFromBytes([]byte(sampleDoc)))
	wc := e.NewWorkerCache()

	metrics := e.EvaluateRules(wc, ctxWithAmount(15000), 0)
	assert.Equal(t, 26.0, metrics.TotalScore)
	assert.Equal(t, 2, metrics.RulesTriggered)

	stats := e.GetRuleStatistics()
	assert.Equal(t, int64(1), stats["high-amount"].EvaluationCount)
	assert.Equal(t, int64(1), stats["high-amount"].HitCount)
}

func TestDisabledRuleNeverEvaluated(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.LoadRulesFromBytes([]byte(sampleDoc)))
	wc := e.NewWorkerCache()
	e.EvaluateRules(wc, ctxWithAmount(100), 0)

	stats := e.GetRuleStatistics()
	assert.Equal(t, int64(0), stats["disabled"].EvaluationCount)
}

func TestStatsMonotonicAcrossRepeatedEvaluations(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.LoadRulesFromBytes([]byte(sampleDoc)))
	wc := e.NewWorkerCache()

	for i := 0; i < 5; i++ {
		e.EvaluateRules(wc, ctxWithAmount(100), 0)
	}
	stats := e.GetRuleStatistics()
	assert.Equal(t, int64(5), stats["low-weight"].EvaluationCount)
}

func TestReloadInvalidatesWorkerCacheLazily(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.LoadRulesFromBytes([]byte(sampleDoc)))
	wc := e.NewWorkerCache()
	e.EvaluateRules(wc, ctxWithAmount(100), 0)

	reloadDoc := `{"version":"v2","rules":[{"id":"new-rule","expression":"amount > 50","weight":9,"enabled":true}],"thresholds":{"approve_threshold":30,"review_threshold":70}}`
	require.NoError(t, e.LoadRulesFromBytes([]byte(reloadDoc)))

	metrics := e.EvaluateRules(wc, ctxWithAmount(100), 0)
	assert.Equal(t, 1, metrics.RulesEvaluated)
	assert.Equal(t, "new-rule", metrics.Results[0].RuleID)
}

func TestOmittedEnabledFieldDefaultsTrue(t *testing.T) {
	e := NewEngine(nil)
	doc := `{"version":"v1","rules":[{"id":"no-enabled-field","expression":"amount > 0","weight":1}],"thresholds":{"approve_threshold":30,"review_threshold":70}}`
	require.NoError(t, e.LoadRulesFromBytes([]byte(doc)))

	wc := e.NewWorkerCache()
	metrics := e.EvaluateRules(wc, ctxWithAmount(100), 0)
	assert.Equal(t, 1, metrics.RulesEvaluated, "a rule omitting \"enabled\" must default to enabled=true, not be silently skipped")
}

func TestThresholdInvariantEnforced(t *testing.T) {
	e := NewEngine(nil)
	bad := `{"version":"v1","rules":[],"thresholds":{"approve_threshold":80,"review_threshold":30}}`
	err := e.LoadRulesFromBytes([]byte(bad))
	require.Error(t, err)
}

func TestEvaluationBudgetTruncates(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.LoadRulesFromBytes([]byte(sampleDoc)))
	wc := e.NewWorkerCache()
	metrics := e.EvaluateRules(wc, ctxWithAmount(100), 1*time.Nanosecond)
	assert.True(t, metrics.RulesEvaluated <= 4)
	assert.True(t, metrics.Truncated)
}
