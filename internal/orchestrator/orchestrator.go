// Package orchestrator implements the decision core's library-style
// entry point (§6): ProcessDecision takes a raw request document and
// returns a fully reasoned Response, coordinating the config store, the
// pattern matcher, the rule engine, and the telemetry surface. There is
// no embedded HTTP listener here — the Open Question on transport
// boundary (DESIGN.md) is resolved in favor of a plain Go API a caller
// wires into whatever transport it needs.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/riskcore/decisioncore/internal/config"
	"github.com/riskcore/decisioncore/internal/decision"
	"github.com/riskcore/decisioncore/internal/decisionerr"
	"github.com/riskcore/decisioncore/internal/pattern"
	"github.com/riskcore/decisioncore/internal/rules"
	"github.com/riskcore/decisioncore/internal/telemetry"
)

// defaultModelVersion is stamped onto a Response (§6) while no rule config
// has been loaded; once one is loaded its version is used instead.
const defaultModelVersion = "unversioned"

// Orchestrator wires the four collaborating components together behind
// one call. All dependencies are passed in explicitly at construction
// time rather than reached for as globals, matching the teacher's
// constructor-injection style in its service wiring.
type Orchestrator struct {
	cfg      *config.Store
	rules    *rules.Engine
	matcher  *pattern.Matcher
	features *decision.FeatureCache
	metrics  *telemetry.Collector
	logger   *slog.Logger

	cachePool *workerCachePool
	limiter   *rate.Limiter
}

// New builds an Orchestrator. budgetPerSecond sets a golang.org/x/time/rate
// limiter (rate and burst both budgetPerSecond): decisions within that
// rate call EvaluateRules with a zero (unbounded) budget, and decisions
// beyond it are evaluated under a fixed 10ms budget (see evaluateRules),
// so the budget engages only under sustained overload.
func New(cfg *config.Store, engine *rules.Engine, matcher *pattern.Matcher, features *decision.FeatureCache, metrics *telemetry.Collector, logger *slog.Logger, budgetPerSecond float64) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		rules:     engine,
		matcher:   matcher,
		features:  features,
		metrics:   metrics,
		logger:    logger,
		cachePool: newWorkerCachePool(engine),
		limiter:   rate.NewLimiter(rate.Limit(budgetPerSecond), int(budgetPerSecond)),
	}
}

// ProcessDecision implements §4.5's five-step pipeline: parse/validate,
// build context, run pattern matching and rule evaluation, fuse the
// score, and assemble the response. Errors are decisionerr-typed so the
// caller (and the metrics it feeds) can distinguish request-shape
// failures from internal ones without string matching.
func (o *Orchestrator) ProcessDecision(ctx context.Context, body []byte) (decision.Response, error) {
	start := time.Now()
	traceID := telemetry.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = telemetry.NewTraceID()
	}
	logger := o.logger.With("trace_id", traceID)

	req, err := decision.ParseRequest(body, start)
	if err != nil {
		o.recordError("orchestrator", err)
		return decision.Response{}, err
	}

	derived := o.lookupFeatures(req)
	ruleCtx := decision.BuildRuleContext(req, derived)

	patternResults, ipHit := o.matcher.MatchTransaction(req, nil)
	if ipHit {
		ruleCtx.IPBlacklistMatch = 1
	}
	o.metrics.PatternMatchTotal.WithLabelValues("blacklist").Add(float64(len(patternResults.BlacklistOnly)))
	o.metrics.PatternMatchTotal.WithLabelValues("whitelist").Add(float64(len(patternResults.WhitelistOnly)))
	o.metrics.PatternMatchLatency.Observe(patternResults.EvaluationTime.Seconds())

	ruleMetrics := o.evaluateRules(ruleCtx)
	o.metrics.RuleEvalLatency.Observe(ruleMetrics.TotalEvaluationTime.Seconds())
	for _, r := range ruleMetrics.Results {
		if r.Triggered {
			o.metrics.RuleHitTotal.WithLabelValues(r.RuleID).Inc()
		}
	}

	fr := fuse(ruleCtx, ruleMetrics, patternResults)
	score := decision.RoundScore(fr.rawScore)

	thresholds := rules.Thresholds{Approve: 40, Review: 70}
	modelVersion := defaultModelVersion
	if rc := o.rules.GetCurrentConfig(); rc != nil {
		thresholds = rc.Thresholds
		modelVersion = rc.Version
	}
	outcome := decideOutcome(score, thresholds, fr.highRisk)
	if ruleMetrics.Truncated {
		o.metrics.RecordError("rules", "evaluation_truncated")
		if outcome != decision.Decline {
			outcome = decision.Review
		}
	}

	resp := decision.Response{
		RequestID:      req.RequestID,
		Decision:       outcome,
		RiskScore:      score,
		TriggeredRules: reasons(ruleMetrics, fr, patternResults),
		LatencyMs:      float64(time.Since(start).Microseconds()) / 1000.0,
		ModelVersion:   modelVersion,
		Timestamp:      start.UTC(),
	}

	o.metrics.RequestTotal.WithLabelValues("ok").Inc()
	o.metrics.RequestLatency.Observe(time.Since(start).Seconds())
	o.metrics.DecisionTotal.WithLabelValues(string(outcome)).Inc()
	logger.Debug("decision processed", "request_id", req.RequestID, "decision", outcome, "risk_score", score)

	return resp, nil
}

// reasons builds the union triggered_rules list: ids of every rule that
// fired, the synthetic adjustment ids fuse applied, and the names of any
// pattern hits, in that order (§4.5 step 7, §8 scenario 6).
func reasons(rm rules.EvaluationMetrics, fr fusionResult, pr pattern.Results) []string {
	var out []string
	for _, r := range rm.Results {
		if r.Triggered {
			out = append(out, r.RuleID)
		}
	}
	out = append(out, fr.adjustments...)
	for _, m := range pr.All {
		out = append(out, m.PatternName)
	}
	return out
}

func (o *Orchestrator) lookupFeatures(req *decision.Request) decision.DerivedFeatures {
	key := req.FeatureCacheKey()
	if d, ok := o.features.Get(key); ok {
		return d
	}
	d := decision.DefaultDerivedFeatures(req.Transaction.Amount)
	o.features.Set(key, d)
	return d
}

// evaluateRules borrows an exclusively-owned WorkerCache from the pool for
// the duration of this single decision and returns it afterward. The
// per-request evaluation budget is enforced only once the limiter signals
// sustained overload: under normal load every rule runs to completion, and
// a tight budget engages to protect the p99 exactly when the process is
// past its configured decisions-per-second rate.
func (o *Orchestrator) evaluateRules(ruleCtx *decision.RuleContext) rules.EvaluationMetrics {
	wc := o.cachePool.get()
	defer o.cachePool.put(wc)

	var budget time.Duration
	if !o.limiter.Allow() {
		budget = 10 * time.Millisecond
	}
	return o.rules.EvaluateRules(wc, ruleCtx, budget)
}

func (o *Orchestrator) recordError(component string, err error) {
	kind := string(decisionerr.InternalError)
	if de, ok := err.(*decisionerr.Error); ok {
		kind = string(de.Kind)
	}
	o.metrics.RecordError(component, kind)
	o.metrics.RequestTotal.WithLabelValues("error").Inc()
}

// Health reports whether the orchestrator's collaborators are in a state
// that can serve traffic at all (config loaded).
func (o *Orchestrator) Health() bool {
	return o.cfg.Get() != nil
}

// Ready reports whether the orchestrator can produce meaningful
// decisions: config loaded, rule engine initialized, and pattern matcher
// compiled (§4.3/§4.4's readiness contract).
func (o *Orchestrator) Ready() bool {
	return o.Health() && o.rules.IsInitialized() && o.matcher.State() == pattern.Ready
}
