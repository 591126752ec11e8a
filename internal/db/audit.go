package db

import (
	"context"
	"encoding/json"
	"time"

	"dispute-agent/internal/dispute"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AuditSink records every workflow transition. Implementations must never
// return an error into the workflow; failures are surfaced operationally.
type AuditSink interface {
	LogNodeEntry(ctx context.Context, disputeID, nodeName string, contextData map[string]any)
	LogDecision(ctx context.Context, disputeID string, decision *dispute.Decision)
	LogRetrieval(ctx context.Context, disputeID, query string, documents []dispute.RuleDocument, scores []float64)
	LogAction(ctx context.Context, disputeID, actionType string, metadata map[string]any)
	LogError(ctx context.Context, disputeID, nodeName, message string, state *dispute.State)
}

// AuditLogger persists the audit trail to the audit_log table.
type AuditLogger struct {
	DB Querier
}

func NewAuditLogger(q Querier) *AuditLogger {
	return &AuditLogger{DB: q}
}

func (a *AuditLogger) insert(ctx context.Context, disputeID, nodeName, eventType string, stateData any, errorMessage string) {
	var stateJSON []byte
	if stateData != nil {
		var err error
		stateJSON, err = json.Marshal(stateData)
		if err != nil {
			log.Error().Err(err).Str("dispute_id", disputeID).Msg("audit: failed to marshal state data")
			stateJSON = nil
		}
	}

	_, err := a.DB.Exec(ctx, `
		INSERT INTO audit_log (id, dispute_id, node_name, event_type, state_data, error_message, timestamp)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		uuid.NewString(), disputeID, nodeName, eventType, stateJSON, errorMessage, time.Now().UTC(),
	)
	if err != nil {
		// Audit failures must be observable but never abort the workflow.
		log.Error().Err(err).
			Str("dispute_id", disputeID).
			Str("node", nodeName).
			Str("event", eventType).
			Msg("audit: insert failed")
	}
}

func (a *AuditLogger) LogNodeEntry(ctx context.Context, disputeID, nodeName string, contextData map[string]any) {
	a.insert(ctx, disputeID, nodeName, "node_entry", contextData, "")
}

func (a *AuditLogger) LogDecision(ctx context.Context, disputeID string, decision *dispute.Decision) {
	evidenceJSON, err := json.Marshal(map[string]any{"supporting_rules": decision.SupportingRules})
	if err != nil {
		evidenceJSON = nil
	}

	_, err = a.DB.Exec(ctx, `
		INSERT INTO audit_log (id, dispute_id, node_name, event_type, reasoning, confidence_score, supporting_evidence, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), disputeID, "adjudication", "decision_made",
		decision.Reasoning, decision.ConfidenceScore, evidenceJSON, time.Now().UTC(),
	)
	if err != nil {
		log.Error().Err(err).Str("dispute_id", disputeID).Msg("audit: decision insert failed")
	}
}

func (a *AuditLogger) LogRetrieval(ctx context.Context, disputeID, query string, documents []dispute.RuleDocument, scores []float64) {
	avg := 0.0
	if len(scores) > 0 {
		for _, s := range scores {
			avg += s
		}
		avg /= float64(len(scores))
	}
	a.insert(ctx, disputeID, "legal_research", "rule_retrieval", map[string]any{
		"query":              query,
		"num_documents":      len(documents),
		"similarity_scores":  scores,
		"average_similarity": avg,
	}, "")
}

func (a *AuditLogger) LogAction(ctx context.Context, disputeID, actionType string, metadata map[string]any) {
	a.insert(ctx, disputeID, "action", actionType, metadata, "")
}

func (a *AuditLogger) LogError(ctx context.Context, disputeID, nodeName, message string, state *dispute.State) {
	a.insert(ctx, disputeID, nodeName, "error", state, message)
}

// AuditEntry is one audit_log row, as returned by ListAuditTrail.
type AuditEntry struct {
	ID           string          `json:"id"`
	DisputeID    string          `json:"dispute_id"`
	NodeName     string          `json:"node_name"`
	EventType    string          `json:"event_type"`
	StateData    json.RawMessage `json:"state_data,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

func ListAuditTrail(ctx context.Context, q Querier, disputeID string) ([]AuditEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT id, dispute_id, node_name, event_type,
			COALESCE(state_data, 'null'::jsonb), COALESCE(error_message, ''), timestamp
		FROM audit_log
		WHERE dispute_id = $1
		ORDER BY timestamp ASC`, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.DisputeID, &e.NodeName, &e.EventType,
			&e.StateData, &e.ErrorMessage, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
