package orchestrator

import (
	"net"

	"github.com/riskcore/decisioncore/internal/decision"
	"github.com/riskcore/decisioncore/internal/pattern"
	"github.com/riskcore/decisioncore/internal/rules"
)

// majorCurrencies is the reference fusion's notion of "major currency"
// (§4.5 step 5 names the adjustment but not the set); any currency code
// outside this set draws the non-major-currency adjustment.
var majorCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CAD": true, "AUD": true, "CHF": true, "CNY": true,
}

const (
	adjustmentHighAmount       = 25.0
	adjustmentNonMajorCurrency = 15.0
	adjustmentHighCustomerRisk = 30.0
	adjustmentNewAccount       = 20.0
	adjustmentPrivateIPHit     = 10.0

	highAmountThreshold  = 10000.0
	highRiskScoreCutoff  = 70.0
	newAccountDaysCutoff = 30.0
)

// fusionResult is the intermediate output of fuse: raw score, the
// synthetic adjustment ids applied, and whether the high-risk override
// of §4.5 step 6 is in force.
type fusionResult struct {
	rawScore    float64
	adjustments []string
	highRisk    bool
}

// fuse implements §4.5 step 5: start at 0, add rule contributions, apply
// deterministic categorical adjustments, add the pattern-score component.
func fuse(ctx *decision.RuleContext, ruleMetrics rules.EvaluationMetrics, patternResults pattern.Results) fusionResult {
	var fr fusionResult
	fr.rawScore = ruleMetrics.TotalScore

	if ctx.Amount > highAmountThreshold {
		fr.rawScore += adjustmentHighAmount
		fr.adjustments = append(fr.adjustments, "adj:high_amount")
	}
	if !majorCurrencies[ctx.Currency] {
		fr.rawScore += adjustmentNonMajorCurrency
		fr.adjustments = append(fr.adjustments, "adj:non_major_currency")
	}
	if ctx.CustomerRiskScore > highRiskScoreCutoff {
		fr.rawScore += adjustmentHighCustomerRisk
		fr.adjustments = append(fr.adjustments, "adj:high_customer_risk")
	}
	if ctx.AccountAgeDays < newAccountDaysCutoff {
		fr.rawScore += adjustmentNewAccount
		fr.adjustments = append(fr.adjustments, "adj:new_account")
	}
	if isPrivateIP(ctx.IPAddress) {
		fr.rawScore += adjustmentPrivateIPHit
		fr.adjustments = append(fr.adjustments, "adj:private_ip_hit")
	}

	fr.rawScore += patternResults.Score()

	fr.highRisk = ctx.CustomerRiskScore > highRiskScoreCutoff || ctx.Amount > highAmountThreshold
	return fr
}

func isPrivateIP(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}

// decideOutcome applies the §4.5 step 6 threshold contract, with the high-risk
// override forcing at least DECLINE.
func decideOutcome(score float64, thresholds rules.Thresholds, highRisk bool) decision.Outcome {
	var outcome decision.Outcome
	switch {
	case score < thresholds.Approve:
		outcome = decision.Approve
	case score >= thresholds.Review:
		outcome = decision.Decline
	default:
		outcome = decision.Review
	}
	if highRisk && outcome != decision.Decline {
		outcome = decision.Decline
	}
	return outcome
}
