package fraud

import (
	"fmt"
	"time"

	"dispute-agent/internal/dispute"
)

const (
	chargebackRateThreshold = 0.01
	recentChargebackWindow  = 180 * 24 * time.Hour
	recentChargebackCount   = 3
	amountMultiplier        = 3.0
	maxRiskFactors          = 5.0
	suspiciousRiskScore     = 0.4
)

// Analyzer derives friendly-fraud signals from transaction history. It is
// deterministic given its inputs and the injected clock.
type Analyzer struct {
	Now func() time.Time
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{Now: time.Now}
}

// DetectPatterns accumulates weighted risk factors:
// chargeback rate above 1% (weight 2), three or more chargebacks in the
// trailing 180 days (weight 2), dispute amount above 3x the historical
// average (weight 1). Risk score is the triggered weight sum over 5, capped
// at 1; a score of 0.4 or more flags the dispute as suspicious.
func (a *Analyzer) DetectPatterns(transactions []dispute.Transaction, disputeAmount float64) dispute.FraudAnalysis {
	if len(transactions) == 0 {
		return dispute.FraudAnalysis{PatternDetails: []string{}}
	}

	var chargebacks []dispute.Transaction
	var total float64
	for _, tx := range transactions {
		total += tx.Amount
		if tx.Status == "chargeback" {
			chargebacks = append(chargebacks, tx)
		}
	}

	chargebackRate := float64(len(chargebacks)) / float64(len(transactions))

	details := []string{}
	riskFactors := 0

	if chargebackRate > chargebackRateThreshold {
		details = append(details,
			fmt.Sprintf("High chargeback rate: %.2f%% (threshold: 1%%)", chargebackRate*100))
		riskFactors += 2
	}

	now := a.Now()
	recent := 0
	for _, tx := range chargebacks {
		if now.Sub(tx.Timestamp) <= recentChargebackWindow {
			recent++
		}
	}
	if recent >= recentChargebackCount {
		details = append(details,
			fmt.Sprintf("Multiple recent chargebacks: %d in last 6 months", recent))
		riskFactors += 2
	}

	avgAmount := total / float64(len(transactions))
	if disputeAmount > avgAmount*amountMultiplier {
		details = append(details,
			fmt.Sprintf("Dispute amount (%.2f) significantly exceeds average transaction (%.2f)",
				disputeAmount, avgAmount))
		riskFactors++
	}

	riskScore := float64(riskFactors) / maxRiskFactors
	if riskScore > 1.0 {
		riskScore = 1.0
	}

	return dispute.FraudAnalysis{
		HasSuspiciousPatterns: riskScore >= suspiciousRiskScore,
		ChargebackRate:        chargebackRate,
		RiskScore:             riskScore,
		PatternDetails:        details,
	}
}
