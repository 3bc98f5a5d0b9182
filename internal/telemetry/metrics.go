// Package telemetry implements the metrics/log surface of §4.6: counters,
// timers, structured events with a per-request trace id, grounded on
// internal/metrics/collector.go in the teacher tree.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector is passed by explicit reference to the orchestrator rather
// than reached through a global singleton (§9's design note).
type Collector struct {
	RequestTotal       *prometheus.CounterVec
	RequestLatency     prometheus.Histogram
	DecisionTotal      *prometheus.CounterVec
	RuleEvalLatency    prometheus.Histogram
	RuleHitTotal       *prometheus.CounterVec
	PatternMatchTotal  *prometheus.CounterVec
	PatternMatchLatency prometheus.Histogram
	ErrorTotal         *prometheus.CounterVec
}

// latencyBuckets covers 1ms through 1s, per §4.6.
func latencyBuckets() []float64 {
	return prometheus.ExponentialBucketsRange(0.001, 1.0, 12)
}

// NewCollector registers every metric under reg. Passing a fresh registry
// (rather than the global default) keeps tests hermetic.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decisioncore_requests_total", Help: "Total decision requests received.",
		}, []string{"outcome"}),
		RequestLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "decisioncore_request_latency_seconds", Help: "End-to-end decision latency.",
			Buckets: latencyBuckets(),
		}),
		DecisionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decisioncore_decisions_total", Help: "Decisions by outcome.",
		}, []string{"decision"}),
		RuleEvalLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "decisioncore_rule_evaluation_latency_seconds", Help: "Rule-engine evaluation latency.",
			Buckets: latencyBuckets(),
		}),
		RuleHitTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decisioncore_rule_hits_total", Help: "Rule hit count by rule id.",
		}, []string{"rule_id"}),
		PatternMatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decisioncore_pattern_matches_total", Help: "Pattern matches by category.",
		}, []string{"category"}),
		PatternMatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "decisioncore_pattern_match_latency_seconds", Help: "Pattern scan latency.",
			Buckets: latencyBuckets(),
		}),
		ErrorTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decisioncore_errors_total", Help: "Errors by component and kind.",
		}, []string{"component", "kind"}),
	}
}

// RecordError increments the {component, kind} error counter (§7).
func (c *Collector) RecordError(component, kind string) {
	c.ErrorTotal.WithLabelValues(component, kind).Inc()
}
