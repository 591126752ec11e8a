package fraud

import (
	"fmt"
	"testing"
	"time"

	"dispute-agent/internal/dispute"

	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func testAnalyzer() *Analyzer {
	return &Analyzer{Now: func() time.Time { return testNow }}
}

func tx(id string, amount float64, status string, age time.Duration) dispute.Transaction {
	return dispute.Transaction{
		TransactionID: id,
		CustomerID:    "cust_1",
		Amount:        amount,
		Timestamp:     testNow.Add(-age),
		Merchant:      "Acme Store",
		Status:        status,
	}
}

func cleanHistory(n int, amount float64) []dispute.Transaction {
	history := make([]dispute.Transaction, 0, n)
	for i := 0; i < n; i++ {
		history = append(history, tx(fmt.Sprintf("tx_%d", i), amount, "completed", time.Duration(i)*24*time.Hour))
	}
	return history
}

func TestEmptyHistoryIsNotSuspicious(t *testing.T) {
	result := testAnalyzer().DetectPatterns(nil, 500.0)

	assert.False(t, result.HasSuspiciousPatterns)
	assert.Zero(t, result.ChargebackRate)
	assert.Zero(t, result.RiskScore)
	assert.Empty(t, result.PatternDetails)
}

func TestCleanHistoryIsNotSuspicious(t *testing.T) {
	result := testAnalyzer().DetectPatterns(cleanHistory(50, 60.0), 59.99)

	assert.False(t, result.HasSuspiciousPatterns)
	assert.Zero(t, result.ChargebackRate)
	assert.Zero(t, result.RiskScore)
}

func TestHighChargebackRate(t *testing.T) {
	history := cleanHistory(50, 60.0)
	history = append(history, tx("cb_1", 60.0, "chargeback", 300*24*time.Hour))

	result := testAnalyzer().DetectPatterns(history, 60.0)

	// 1/51 ≈ 1.96% > 1%, weight 2 → risk 0.4
	assert.True(t, result.HasSuspiciousPatterns)
	assert.InDelta(t, 1.0/51.0, result.ChargebackRate, 0.0001)
	assert.InDelta(t, 0.4, result.RiskScore, 0.0001)
	assert.Len(t, result.PatternDetails, 1)
	assert.Contains(t, result.PatternDetails[0], "High chargeback rate")
}

func TestRecentChargebackCluster(t *testing.T) {
	history := cleanHistory(400, 60.0)
	for i := 0; i < 3; i++ {
		history = append(history, tx(fmt.Sprintf("cb_%d", i), 60.0, "chargeback", time.Duration(i+1)*24*time.Hour))
	}

	result := testAnalyzer().DetectPatterns(history, 60.0)

	// 3/403 < 1% so only the recency rule fires: weight 2 → risk 0.4.
	assert.True(t, result.HasSuspiciousPatterns)
	assert.InDelta(t, 0.4, result.RiskScore, 0.0001)
	assert.Len(t, result.PatternDetails, 1)
	assert.Contains(t, result.PatternDetails[0], "recent chargebacks")
}

func TestOldChargebacksDoNotTriggerRecencyRule(t *testing.T) {
	history := cleanHistory(400, 60.0)
	for i := 0; i < 3; i++ {
		history = append(history, tx(fmt.Sprintf("cb_%d", i), 60.0, "chargeback", 200*24*time.Hour))
	}

	result := testAnalyzer().DetectPatterns(history, 60.0)

	assert.False(t, result.HasSuspiciousPatterns)
	assert.Zero(t, result.RiskScore)
}

func TestHighValueDispute(t *testing.T) {
	result := testAnalyzer().DetectPatterns(cleanHistory(50, 60.0), 299.99)

	// Amount rule alone: weight 1 → risk 0.2, below suspicious cutoff.
	assert.False(t, result.HasSuspiciousPatterns)
	assert.InDelta(t, 0.2, result.RiskScore, 0.0001)
	assert.Len(t, result.PatternDetails, 1)
	assert.Contains(t, result.PatternDetails[0], "exceeds average transaction")
}

func TestAllRulesCapRiskScoreAtOne(t *testing.T) {
	history := cleanHistory(10, 50.0)
	for i := 0; i < 3; i++ {
		history = append(history, tx(fmt.Sprintf("cb_%d", i), 50.0, "chargeback", time.Duration(i+1)*24*time.Hour))
	}

	result := testAnalyzer().DetectPatterns(history, 1000.0)

	// All three rules: 2+2+1 = 5 → risk exactly 1.0.
	assert.True(t, result.HasSuspiciousPatterns)
	assert.InDelta(t, 1.0, result.RiskScore, 0.0001)
	assert.Len(t, result.PatternDetails, 3)
}

func TestBoundsHoldForArbitraryInput(t *testing.T) {
	histories := [][]dispute.Transaction{
		nil,
		cleanHistory(1, 0.01),
		{tx("cb", 10, "chargeback", time.Hour)},
		append(cleanHistory(5, 1e9), tx("cb", 1e9, "chargeback", time.Hour)),
	}
	for _, h := range histories {
		for _, amount := range []float64{0, 0.01, 1e9} {
			result := testAnalyzer().DetectPatterns(h, amount)
			assert.GreaterOrEqual(t, result.ChargebackRate, 0.0)
			assert.LessOrEqual(t, result.ChargebackRate, 1.0)
			assert.GreaterOrEqual(t, result.RiskScore, 0.0)
			assert.LessOrEqual(t, result.RiskScore, 1.0)
		}
	}
}

func TestDeterministic(t *testing.T) {
	history := cleanHistory(20, 45.0)
	a := testAnalyzer()

	first := a.DetectPatterns(history, 200.0)
	second := a.DetectPatterns(history, 200.0)

	assert.Equal(t, first, second)
}
