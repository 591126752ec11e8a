package db

import (
	"context"
	"time"
)

// DisputeRecord is the durable terminal-state summary of one workflow run.
type DisputeRecord struct {
	DisputeID       string    `json:"dispute_id"`
	FinalDecision   string    `json:"final_decision"`
	ConfidenceScore float64   `json:"confidence_score"`
	Status          string    `json:"status"`
	TerminalNode    string    `json:"terminal_node"`
	ActionsTaken    []string  `json:"actions_taken"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type UpsertDisputeParams struct {
	DisputeID       string
	FinalDecision   string
	ConfidenceScore float64
	Status          string
	TerminalNode    string
	ActionsTaken    []string
}

// UpsertDisputeRecord writes the terminal summary for a dispute. Keyed on
// dispute_id so a re-run overwrites the previous summary.
func UpsertDisputeRecord(ctx context.Context, q Querier, p UpsertDisputeParams) error {
	now := time.Now().UTC()
	_, err := q.Exec(ctx, `
		INSERT INTO dispute_history (
			dispute_id, final_decision, confidence_score, status,
			terminal_node, actions_taken, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (dispute_id) DO UPDATE SET
			final_decision = EXCLUDED.final_decision,
			confidence_score = EXCLUDED.confidence_score,
			status = EXCLUDED.status,
			terminal_node = EXCLUDED.terminal_node,
			actions_taken = EXCLUDED.actions_taken,
			updated_at = EXCLUDED.updated_at`,
		p.DisputeID, p.FinalDecision, p.ConfidenceScore, p.Status,
		p.TerminalNode, p.ActionsTaken, now,
	)
	return err
}

func GetDisputeRecord(ctx context.Context, q Querier, disputeID string) (*DisputeRecord, error) {
	var r DisputeRecord
	err := q.QueryRow(ctx, `
		SELECT dispute_id, COALESCE(final_decision, ''), COALESCE(confidence_score, 0),
			status, COALESCE(terminal_node, ''), COALESCE(actions_taken, '{}'),
			created_at, updated_at
		FROM dispute_history
		WHERE dispute_id = $1`, disputeID,
	).Scan(&r.DisputeID, &r.FinalDecision, &r.ConfidenceScore, &r.Status,
		&r.TerminalNode, &r.ActionsTaken, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
