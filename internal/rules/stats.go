package rules

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats tracks one rule's lifetime counters (§3, enriched per
// SPEC_FULL.md §12 with the teacher's RuleMetrics average/last-* fields).
// EvaluationCount/HitCount/TotalEvalNs are updated with atomics
// since many workers share one Stats instance per rule id (§5); the
// last-* timestamps are updated under a small mutex since they are not
// natively atomic types and are read far less often than they're written.
type Stats struct {
	EvaluationCount int64
	HitCount        int64
	TotalEvalNs     int64

	mu             sync.Mutex
	lastEvaluation time.Time
	lastMatch      time.Time
	lastError      time.Time
	lastErrorMsg   string
	compileError   string
}

func newStats() *Stats { return &Stats{} }

func (s *Stats) recordEvaluation(triggered bool, d time.Duration) {
	atomic.AddInt64(&s.EvaluationCount, 1)
	atomic.AddInt64(&s.TotalEvalNs, d.Nanoseconds())
	s.mu.Lock()
	s.lastEvaluation = time.Now()
	if triggered {
		atomic.AddInt64(&s.HitCount, 1)
		s.lastMatch = s.lastEvaluation
	}
	s.mu.Unlock()
}

func (s *Stats) recordError(msg string) {
	s.mu.Lock()
	s.lastError = time.Now()
	s.lastErrorMsg = msg
	s.mu.Unlock()
}

func (s *Stats) setCompileError(msg string) {
	s.mu.Lock()
	s.compileError = msg
	s.mu.Unlock()
}

// Snapshot is a race-free, point-in-time copy of a rule's statistics,
// returned by Engine.GetRuleStatistics for the §4.4 get_rule_statistics()
// contract.
type Snapshot struct {
	RuleID               string
	EvaluationCount      int64
	HitCount             int64
	TotalEvaluationTime  time.Duration
	AverageEvaluationTime time.Duration
	LastEvaluation       time.Time
	LastMatch            time.Time
	LastError            time.Time
	LastErrorMessage     string
	CompileError         string
}

func (s *Stats) snapshot(ruleID string) Snapshot {
	count := atomic.LoadInt64(&s.EvaluationCount)
	total := time.Duration(atomic.LoadInt64(&s.TotalEvalNs))
	var avg time.Duration
	if count > 0 {
		avg = total / time.Duration(count)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		RuleID: ruleID, EvaluationCount: count, HitCount: atomic.LoadInt64(&s.HitCount),
		TotalEvaluationTime: total, AverageEvaluationTime: avg,
		LastEvaluation: s.lastEvaluation, LastMatch: s.lastMatch, LastError: s.lastError,
		LastErrorMessage: s.lastErrorMsg, CompileError: s.compileError,
	}
}

func (s *Stats) reset() {
	atomic.StoreInt64(&s.EvaluationCount, 0)
	atomic.StoreInt64(&s.HitCount, 0)
	atomic.StoreInt64(&s.TotalEvalNs, 0)
	s.mu.Lock()
	s.lastEvaluation = time.Time{}
	s.lastMatch = time.Time{}
	s.lastError = time.Time{}
	s.lastErrorMsg = ""
	s.mu.Unlock()
}
