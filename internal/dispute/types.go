package dispute

import (
	"time"
)

// DisputePayload holds the validated webhook fields for one dispute.
type DisputePayload struct {
	DisputeID     string    `json:"dispute_id"`
	CustomerID    string    `json:"customer_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	ReasonCode    string    `json:"reason_code"`
	Description   string    `json:"description"`
	Timestamp     time.Time `json:"timestamp"`

	CustomerEmail   string `json:"customer_email,omitempty"`
	CustomerName    string `json:"customer_name,omitempty"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	TransactionDate string `json:"transaction_date,omitempty"`
	MerchantName    string `json:"merchant_name,omitempty"`
	CardNumber      string `json:"card_number,omitempty"`
}

// Transaction is one record of a customer's transaction history.
type Transaction struct {
	TransactionID string    `json:"transaction_id"`
	CustomerID    string    `json:"customer_id"`
	Amount        float64   `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
	Merchant      string    `json:"merchant"`
	Status        string    `json:"status"`
}

// RuleDocument is one retrieved regulatory rule with its similarity score.
type RuleDocument struct {
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata"`
	SimilarityScore float64        `json:"similarity_score"`
}

// Decision is the adjudication output. Construct through the synthesizer
// (or NewPlaceholderDecision) so the schema constraints hold.
type Decision struct {
	DisputeID         string   `json:"dispute_id"`
	Decision          string   `json:"decision"`
	ConfidenceScore   float64  `json:"confidence_score"`
	Reasoning         string   `json:"reasoning"`
	SupportingRules   []string `json:"supporting_rules"`
	RecommendedAction string   `json:"recommended_action"`
}

// FraudAnalysis summarizes suspicious-pattern signals derived from
// transaction history. Values are in [0, 1].
type FraudAnalysis struct {
	HasSuspiciousPatterns bool     `json:"has_suspicious_patterns"`
	ChargebackRate        float64  `json:"chargeback_rate"`
	RiskScore             float64  `json:"risk_score"`
	PatternDetails        []string `json:"pattern_details"`
}

// State is the mutable per-dispute workflow state. One instance per run,
// owned by the orchestrator; nodes mutate it in place and never remove
// entries from ActionsTaken.
type State struct {
	DisputeID          string         `json:"dispute_id"`
	Payload            DisputePayload `json:"payload"`
	TransactionHistory []Transaction  `json:"transaction_history,omitempty"`
	RetrievedRules     []RuleDocument `json:"retrieved_rules,omitempty"`
	SimilarityScores   []float64      `json:"similarity_scores,omitempty"`
	QueryAttempts      int            `json:"query_attempts"`
	Decision           *Decision      `json:"decision,omitempty"`
	ConfidenceScore    float64        `json:"confidence_score"`
	ActionsTaken       []string       `json:"actions_taken"`
	Error              string         `json:"error,omitempty"`
	CurrentNode        string         `json:"current_node"`
}

// NewState builds the initial workflow state from a validated payload.
func NewState(payload DisputePayload) *State {
	return &State{
		DisputeID:    payload.DisputeID,
		Payload:      payload,
		ActionsTaken: []string{},
		CurrentNode:  "initial",
	}
}

// NewPlaceholderDecision is used by the human-review terminal when no
// decision was produced upstream.
func NewPlaceholderDecision(disputeID, reason string) *Decision {
	if reason == "" {
		reason = "Processing error occurred - requires human review"
	}
	return &Decision{
		DisputeID:         disputeID,
		Decision:          "escalate",
		ConfidenceScore:   0.0,
		Reasoning:         reason,
		SupportingRules:   []string{},
		RecommendedAction: "human_review",
	}
}
