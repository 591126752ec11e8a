package db

import (
	"context"
	"encoding/json"
	"time"

	"dispute-agent/internal/dispute"
)

// ReviewCase is one human_review_queue row.
type ReviewCase struct {
	DisputeID       string    `json:"dispute_id"`
	ConfidenceScore float64   `json:"confidence_score"`
	Decision        string    `json:"decision"`
	Reasoning       string    `json:"reasoning"`
	SupportingRules []string  `json:"supporting_rules"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// UpsertReviewCase queues a dispute for human review. The insert is keyed on
// dispute_id so re-entry updates the existing row instead of duplicating it.
func UpsertReviewCase(ctx context.Context, q Querier, disputeID string, decision *dispute.Decision, payload dispute.DisputePayload) error {
	reasoning := decision.Reasoning
	if reasoning == "" {
		reasoning = "Requires human review for final determination"
	}

	rulesJSON, err := json.Marshal(decision.SupportingRules)
	if err != nil {
		return err
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = q.Exec(ctx, `
		INSERT INTO human_review_queue (
			dispute_id, confidence_score, decision, reasoning,
			supporting_rules, status, payload, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (dispute_id) DO UPDATE SET
			confidence_score = EXCLUDED.confidence_score,
			decision = EXCLUDED.decision,
			reasoning = EXCLUDED.reasoning,
			supporting_rules = EXCLUDED.supporting_rules,
			updated_at = EXCLUDED.updated_at`,
		disputeID, decision.ConfidenceScore, decision.Decision, reasoning,
		rulesJSON, "pending_review", payloadJSON, now,
	)
	return err
}

// ListPendingReviews returns pending cases oldest-first.
func ListPendingReviews(ctx context.Context, q Querier) ([]ReviewCase, error) {
	rows, err := q.Query(ctx, `
		SELECT dispute_id, confidence_score, decision, reasoning,
			COALESCE(supporting_rules, '[]'::jsonb), status, created_at
		FROM human_review_queue
		WHERE status = 'pending_review'
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []ReviewCase
	for rows.Next() {
		var c ReviewCase
		var rulesJSON []byte
		if err := rows.Scan(&c.DisputeID, &c.ConfidenceScore, &c.Decision,
			&c.Reasoning, &rulesJSON, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rulesJSON, &c.SupportingRules); err != nil {
			c.SupportingRules = nil
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// UpdateReviewStatus marks a case as claimed or resolved by a reviewer.
func UpdateReviewStatus(ctx context.Context, q Querier, disputeID, status, reviewedBy string) error {
	now := time.Now().UTC()
	_, err := q.Exec(ctx, `
		UPDATE human_review_queue
		SET status = $1, reviewed_by = $2, reviewed_at = $3, updated_at = $3
		WHERE dispute_id = $4`,
		status, reviewedBy, now, disputeID,
	)
	return err
}
