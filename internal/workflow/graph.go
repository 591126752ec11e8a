package workflow

import (
	"context"
	"fmt"
	"time"

	"dispute-agent/internal/db"
	"dispute-agent/internal/dispute"
	"dispute-agent/internal/notify"
	"dispute-agent/internal/retrieval"
	"dispute-agent/internal/telemetry"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Node names recorded in state and audit entries.
const (
	nodeInput         = "input_node"
	nodeEnrichment    = "enrichment_node"
	nodeLegalResearch = "legal_research_node"
	nodeAdjudication  = "adjudication_node"
	nodeAction        = "action_node"
	nodeHumanReview   = "human_review_node"
)

// Route is the outcome of a conditional edge.
type Route string

const (
	RouteRewrite     Route = "rewrite"
	RouteProceed     Route = "proceed"
	RouteEscalate    Route = "escalate"
	RouteAction      Route = "action"
	RouteHumanReview Route = "human_review"
)

type Enricher interface {
	FetchHistory(ctx context.Context, customerID string) ([]dispute.Transaction, error)
}

type Researcher interface {
	RetrieveWithSelfCorrection(ctx context.Context, initialQuery string, disputeCtx dispute.DisputePayload) (*retrieval.Result, int, error)
}

type FraudDetector interface {
	DetectPatterns(transactions []dispute.Transaction, disputeAmount float64) dispute.FraudAnalysis
}

type Adjudicator interface {
	Synthesize(ctx context.Context, state *dispute.State, fraudAnalysis *dispute.FraudAnalysis) (*dispute.Decision, error)
}

type ActionDispatcher interface {
	Dispatch(ctx context.Context, state *dispute.State, decision *dispute.Decision) *dispute.DispatchResult
}

// Store persists review-queue cases and terminal dispute summaries.
type Store interface {
	UpsertReview(ctx context.Context, disputeID string, decision *dispute.Decision, payload dispute.DisputePayload) error
	UpsertDispute(ctx context.Context, state *dispute.State, status string) error
}

// Workflow is the per-dispute state machine. A single instance serves
// concurrent runs; all per-run data lives in the State.
type Workflow struct {
	Enricher       Enricher
	Researcher     Researcher
	Fraud          FraudDetector
	Adjudicator    Adjudicator
	Dispatcher     ActionDispatcher
	ReviewNotifier notify.Transport
	Store          Store
	Audit          db.AuditSink
	Tracer         trace.Tracer
	Metrics        *telemetry.GenAIMetrics

	SimilarityThreshold float64
	ConfidenceThreshold float64
	MaxQueryAttempts    int
}

// Run executes the state machine for one dispute. It always reaches a
// terminal node; errors inside nodes are captured into state and routed,
// never returned. The returned error covers only pre-run failures.
func (w *Workflow) Run(ctx context.Context, payload dispute.DisputePayload) (*dispute.State, error) {
	if payload.DisputeID == "" {
		return nil, fmt.Errorf("dispute_id is required")
	}

	start := time.Now()
	ctx, span := w.Tracer.Start(ctx, "workflow run")
	defer span.End()
	span.SetAttributes(
		attribute.String("dispute.id", payload.DisputeID),
		attribute.String("dispute.reason_code", payload.ReasonCode),
	)

	state := dispute.NewState(payload)

	w.runNode(ctx, state, nodeInput, w.inputNode)
	w.runNode(ctx, state, nodeEnrichment, w.enrichmentNode)
	w.runNode(ctx, state, nodeLegalResearch, w.legalResearchNode)

	for {
		route := w.RouteAfterResearch(state)
		if route != RouteRewrite {
			if route == RouteEscalate {
				w.runNode(ctx, state, nodeHumanReview, w.humanReviewNode)
				w.finish(ctx, state, start, span)
				return state, nil
			}
			break
		}
		// The retriever rewrites internally; a rewrite route here means it
		// returned early with attempts to spare, so research runs again.
		w.runNode(ctx, state, nodeLegalResearch, w.legalResearchNode)
	}

	w.runNode(ctx, state, nodeAdjudication, w.adjudicationNode)

	if w.RouteByConfidence(state) == RouteAction {
		w.runNode(ctx, state, nodeAction, w.actionNode)
		if state.Error != "" {
			// Delivery exhausted its retries; a specialist picks it up.
			w.runNode(ctx, state, nodeHumanReview, w.humanReviewNode)
		}
	} else {
		w.runNode(ctx, state, nodeHumanReview, w.humanReviewNode)
	}

	w.finish(ctx, state, start, span)
	return state, nil
}

// runNode executes one node, converting a panic into a captured error so the
// routing functions can steer the dispute to a terminal node.
func (w *Workflow) runNode(ctx context.Context, state *dispute.State, name string, fn func(context.Context, *dispute.State)) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("%s panicked: %v", name, r)
			w.Audit.LogError(ctx, state.DisputeID, name, msg, state)
			state.Error = msg
		}
	}()
	fn(ctx, state)
}

func (w *Workflow) finish(ctx context.Context, state *dispute.State, start time.Time, span trace.Span) {
	span.SetAttributes(attribute.String("dispute.terminal_node", state.CurrentNode))
	if w.Metrics != nil {
		w.Metrics.WorkflowDuration.Record(ctx, time.Since(start).Seconds(),
			telemetry.WithTerminalNode(state.CurrentNode))
		if state.Decision != nil {
			w.Metrics.Confidence.Record(ctx, state.ConfidenceScore,
				telemetry.WithDecision(state.Decision.Decision))
			w.Metrics.DecisionCount.Add(ctx, 1,
				telemetry.WithDecision(state.Decision.Decision))
		}
		if state.CurrentNode == nodeHumanReview {
			w.Metrics.EscalationCount.Add(ctx, 1)
		}
	}

	status := "resolved"
	if state.CurrentNode == nodeHumanReview {
		status = "pending_review"
	}
	if err := w.Store.UpsertDispute(ctx, state, status); err != nil {
		log.Error().Str("dispute_id", state.DisputeID).Err(err).
			Msg("failed to persist dispute summary")
	}
}

func (w *Workflow) inputNode(ctx context.Context, state *dispute.State) {
	w.Audit.LogNodeEntry(ctx, state.DisputeID, nodeInput, map[string]any{
		"payload": state.Payload,
	})
	state.CurrentNode = nodeInput
	state.QueryAttempts = 0
}

func (w *Workflow) enrichmentNode(ctx context.Context, state *dispute.State) {
	w.Audit.LogNodeEntry(ctx, state.DisputeID, nodeEnrichment, map[string]any{
		"customer_id": state.Payload.CustomerID,
	})

	history, err := w.Enricher.FetchHistory(ctx, state.Payload.CustomerID)
	if err != nil {
		// Missing history degrades the fraud signal but does not stop the
		// workflow or force escalation on its own.
		w.Audit.LogError(ctx, state.DisputeID, nodeEnrichment,
			fmt.Sprintf("Enrichment failed: %v", err), state)
		state.ActionsTaken = append(state.ActionsTaken, "enrichment_failed_continuing_without_history")
		return
	}

	state.TransactionHistory = history
	state.CurrentNode = nodeEnrichment
	state.ActionsTaken = append(state.ActionsTaken, "transaction_history_fetched")
}

func (w *Workflow) legalResearchNode(ctx context.Context, state *dispute.State) {
	w.Audit.LogNodeEntry(ctx, state.DisputeID, nodeLegalResearch, map[string]any{
		"query_attempts": state.QueryAttempts,
	})

	initialQuery := fmt.Sprintf("Visa dispute reason code %s: %s. Amount: %g",
		state.Payload.ReasonCode, state.Payload.Description, state.Payload.Amount)

	result, attempts, err := w.Researcher.RetrieveWithSelfCorrection(ctx, initialQuery, state.Payload)
	if err != nil {
		w.Audit.LogError(ctx, state.DisputeID, nodeLegalResearch, err.Error(), state)
		state.Error = fmt.Sprintf("Legal research failed: %v", err)
		return
	}

	state.RetrievedRules = result.Documents
	state.SimilarityScores = result.Scores()
	state.QueryAttempts += attempts
	state.CurrentNode = nodeLegalResearch
	state.ActionsTaken = append(state.ActionsTaken,
		fmt.Sprintf("rag_retrieval_completed_%d_attempts", attempts))

	if w.Metrics != nil {
		w.Metrics.RetrievalAttempts.Record(ctx, float64(attempts))
	}

	w.Audit.LogRetrieval(ctx, state.DisputeID, result.Query, result.Documents, state.SimilarityScores)
}

func (w *Workflow) adjudicationNode(ctx context.Context, state *dispute.State) {
	w.Audit.LogNodeEntry(ctx, state.DisputeID, nodeAdjudication, map[string]any{
		"num_rules": len(state.RetrievedRules),
	})

	var fraudAnalysis *dispute.FraudAnalysis
	if len(state.TransactionHistory) > 0 {
		fa := w.Fraud.DetectPatterns(state.TransactionHistory, state.Payload.Amount)
		fraudAnalysis = &fa
	}

	decision, err := w.Adjudicator.Synthesize(ctx, state, fraudAnalysis)
	if err != nil {
		w.Audit.LogError(ctx, state.DisputeID, nodeAdjudication, err.Error(), state)
		state.Error = fmt.Sprintf("Adjudication failed: %v", err)
		return
	}

	state.Decision = decision
	state.ConfidenceScore = decision.ConfidenceScore
	state.CurrentNode = nodeAdjudication
	state.ActionsTaken = append(state.ActionsTaken, "decision_made")

	w.Audit.LogDecision(ctx, state.DisputeID, decision)
}

func (w *Workflow) actionNode(ctx context.Context, state *dispute.State) {
	w.Audit.LogNodeEntry(ctx, state.DisputeID, nodeAction, map[string]any{
		"decision": state.Decision,
	})

	result := w.Dispatcher.Dispatch(ctx, state, state.Decision)
	if !result.Success {
		w.Audit.LogError(ctx, state.DisputeID, nodeAction,
			fmt.Sprintf("notification failed after %d attempts: %s", result.Attempt, result.Error), state)
		state.Error = fmt.Sprintf("Action execution failed after %d attempts: %s", result.Attempt, result.Error)
		state.ActionsTaken = append(state.ActionsTaken, "email_failed_routing_to_human_review")
		if w.Metrics != nil {
			w.Metrics.NotifyRetryCount.Add(ctx, int64(result.Attempt))
		}
		return
	}

	state.CurrentNode = nodeAction
	state.ActionsTaken = append(state.ActionsTaken,
		fmt.Sprintf("email_sent_attempt_%d", result.Attempt))

	w.Audit.LogAction(ctx, state.DisputeID, "email_sent", map[string]any{
		"recipient": result.Recipient,
		"subject":   result.Subject,
		"provider":  result.Provider,
		"sent_at":   result.SentAt.Format(time.RFC3339),
		"attempt":   result.Attempt,
		"status":    "sent",
	})
}

func (w *Workflow) humanReviewNode(ctx context.Context, state *dispute.State) {
	reason := "low_confidence"
	if state.Error != "" {
		reason = "error"
	}
	w.Audit.LogNodeEntry(ctx, state.DisputeID, nodeHumanReview, map[string]any{
		"reason": reason,
	})

	decision := state.Decision
	if decision == nil {
		decision = dispute.NewPlaceholderDecision(state.DisputeID, state.Error)
	} else if decision.Reasoning == "" {
		decision.Reasoning = "Low confidence decision - requires human review for final determination"
	}

	if err := w.Store.UpsertReview(ctx, state.DisputeID, decision, state.Payload); err != nil {
		// The dispute still needs a reviewer; the terminal must say so even
		// when the queue write fails.
		w.Audit.LogError(ctx, state.DisputeID, nodeHumanReview, err.Error(), state)
		state.Error = fmt.Sprintf("Review queue write failed: %v", err)
		state.ActionsTaken = append(state.ActionsTaken, "review_queue_write_failed")
		state.CurrentNode = nodeHumanReview
		return
	}

	if state.Payload.CustomerEmail != "" && w.ReviewNotifier != nil {
		res, err := w.ReviewNotifier.Send(ctx, notify.Message{
			To:           state.Payload.CustomerEmail,
			DisputeID:    state.DisputeID,
			CustomerName: state.Payload.CustomerName,
			Decision:     "under_review",
			Reasoning:    fmt.Sprintf("Your dispute requires specialist review. %s", decision.Reasoning),
			Amount:       state.Payload.Amount,
			Currency:     state.Payload.Currency,
		})
		if err == nil && res.Success {
			state.ActionsTaken = append(state.ActionsTaken, "email_sent_human_review")
		} else if err != nil {
			log.Warn().Str("dispute_id", state.DisputeID).Err(err).
				Msg("human review notification failed")
		}
	}

	state.ActionsTaken = append(state.ActionsTaken, "routed_to_human_review")
	state.CurrentNode = nodeHumanReview
}

// RouteAfterResearch decides the edge out of legal research from retrieval
// quality. Low quality with attempts left means rewrite; exhausted low
// quality escalates.
func (w *Workflow) RouteAfterResearch(state *dispute.State) Route {
	if state.Error != "" {
		return RouteEscalate
	}
	if len(state.SimilarityScores) == 0 {
		return RouteEscalate
	}

	avg := retrieval.MeanSimilarity(state.SimilarityScores)
	if avg < w.SimilarityThreshold && state.QueryAttempts < w.MaxQueryAttempts {
		return RouteRewrite
	}
	if avg < w.SimilarityThreshold {
		return RouteEscalate
	}
	return RouteProceed
}

// RouteByConfidence decides the edge out of adjudication.
func (w *Workflow) RouteByConfidence(state *dispute.State) Route {
	if state.Error != "" {
		return RouteHumanReview
	}
	if state.ConfidenceScore >= w.ConfidenceThreshold {
		return RouteAction
	}
	return RouteHumanReview
}
