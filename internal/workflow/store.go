package workflow

import (
	"context"

	"dispute-agent/internal/db"
	"dispute-agent/internal/dispute"
)

// PGStore persists workflow outcomes through the shared pgx pool.
type PGStore struct {
	DB db.Querier
}

func NewPGStore(q db.Querier) *PGStore {
	return &PGStore{DB: q}
}

func (s *PGStore) UpsertReview(ctx context.Context, disputeID string, decision *dispute.Decision, payload dispute.DisputePayload) error {
	return db.UpsertReviewCase(ctx, s.DB, disputeID, decision, payload)
}

func (s *PGStore) UpsertDispute(ctx context.Context, state *dispute.State, status string) error {
	finalDecision := ""
	if state.Decision != nil {
		finalDecision = state.Decision.Decision
	}
	return db.UpsertDisputeRecord(ctx, s.DB, db.UpsertDisputeParams{
		DisputeID:       state.DisputeID,
		FinalDecision:   finalDecision,
		ConfidenceScore: state.ConfidenceScore,
		Status:          status,
		TerminalNode:    state.CurrentNode,
		ActionsTaken:    state.ActionsTaken,
	})
}
