package decision

import "time"

// Outcome is one of APPROVE, REVIEW, DECLINE (§3 Decision entity).
type Outcome string

const (
	Approve Outcome = "APPROVE"
	Review  Outcome = "REVIEW"
	Decline Outcome = "DECLINE"
)

// Response is the decision output document (§6).
type Response struct {
	RequestID      string    `json:"request_id"`
	Decision       Outcome   `json:"decision"`
	RiskScore      float64   `json:"risk_score"`
	TriggeredRules []string  `json:"reasons"`
	LatencyMs      float64   `json:"latency_ms"`
	ModelVersion   string    `json:"model_version"`
	Timestamp      time.Time `json:"timestamp"`
}

// RoundScore clamps and rounds a raw fused score to two decimal places
// within [0,100], per §3's risk_score invariant and §6's output contract.
func RoundScore(raw float64) float64 {
	if raw < 0 {
		raw = 0
	}
	if raw > 100 {
		raw = 100
	}
	return float64(int(raw*100+0.5)) / 100
}
