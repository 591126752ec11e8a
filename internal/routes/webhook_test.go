package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dispute-agent/internal/dispute"
	"dispute-agent/internal/fraud"
	"dispute-agent/internal/notify"
	"dispute-agent/internal/retrieval"
	"dispute-agent/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type noopAudit struct {
	errors []string
}

func (n *noopAudit) LogNodeEntry(_ context.Context, _, _ string, _ map[string]any) {}
func (n *noopAudit) LogDecision(_ context.Context, _ string, _ *dispute.Decision)  {}
func (n *noopAudit) LogRetrieval(_ context.Context, _, _ string, _ []dispute.RuleDocument, _ []float64) {
}
func (n *noopAudit) LogAction(_ context.Context, _, _ string, _ map[string]any) {}
func (n *noopAudit) LogError(_ context.Context, _, nodeName, message string, _ *dispute.State) {
	n.errors = append(n.errors, nodeName+": "+message)
}

type staticEnricher struct{}

func (staticEnricher) FetchHistory(_ context.Context, _ string) ([]dispute.Transaction, error) {
	return nil, nil
}

type staticResearcher struct{}

func (staticResearcher) RetrieveWithSelfCorrection(_ context.Context, _ string, _ dispute.DisputePayload) (*retrieval.Result, int, error) {
	return &retrieval.Result{
		Documents: []dispute.RuleDocument{
			{Content: "Rule 10.4 covers card-absent fraud.", SimilarityScore: 0.88},
		},
		Query:             "q",
		AverageSimilarity: 0.88,
	}, 1, nil
}

type staticAdjudicator struct{}

func (staticAdjudicator) Synthesize(_ context.Context, state *dispute.State, _ *dispute.FraudAnalysis) (*dispute.Decision, error) {
	return &dispute.Decision{
		DisputeID:         state.DisputeID,
		Decision:          "accept",
		ConfidenceScore:   0.93,
		Reasoning:         "The retrieved rules unambiguously support the cardholder here.",
		RecommendedAction: "Issue refund",
	}, nil
}

type staticDispatcher struct{}

func (staticDispatcher) Dispatch(_ context.Context, _ *dispute.State, _ *dispute.Decision) *dispute.DispatchResult {
	return &dispute.DispatchResult{Success: true, Attempt: 1}
}

type memStore struct{}

func (memStore) UpsertReview(_ context.Context, _ string, _ *dispute.Decision, _ dispute.DisputePayload) error {
	return nil
}
func (memStore) UpsertDispute(_ context.Context, _ *dispute.State, _ string) error { return nil }

type silentNotifier struct{}

func (silentNotifier) Name() string { return "silent" }
func (silentNotifier) Send(_ context.Context, _ notify.Message) (*notify.SendResult, error) {
	return &notify.SendResult{Success: true, Provider: "silent"}, nil
}

func newWebhookWorkflow(audit *noopAudit) *workflow.Workflow {
	return &workflow.Workflow{
		Enricher:            staticEnricher{},
		Researcher:          staticResearcher{},
		Fraud:               fraud.NewAnalyzer(),
		Adjudicator:         staticAdjudicator{},
		Dispatcher:          staticDispatcher{},
		ReviewNotifier:      silentNotifier{},
		Store:               memStore{},
		Audit:               audit,
		Tracer:              sdktrace.NewTracerProvider().Tracer("test"),
		SimilarityThreshold: 0.7,
		ConfidenceThreshold: 0.85,
		MaxQueryAttempts:    3,
	}
}

func postWebhook(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/dispute", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestWebhookAcceptsValidDispute(t *testing.T) {
	audit := &noopAudit{}
	handler := WebhookHandler(newWebhookWorkflow(audit), audit)

	w := postWebhook(t, handler, validPayload())
	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp DisputeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, "dp_5001", resp.DisputeID)
	assert.Equal(t, "action_node", resp.TerminalNode)
	assert.Empty(t, resp.RejectionCode)
}

func TestWebhookRejectsInvalidDispute(t *testing.T) {
	audit := &noopAudit{}
	handler := WebhookHandler(newWebhookWorkflow(audit), audit)

	payload := validPayload()
	payload.ReasonCode = "42.0"

	w := postWebhook(t, handler, payload)
	assert.Equal(t, http.StatusOK, w.Code, "rejection is an outcome, not an error")

	var resp DisputeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "rejected", resp.Status)
	assert.Equal(t, "REASON001", resp.RejectionCode)
	assert.Contains(t, resp.Message, "[REASON001]")

	require.Len(t, audit.errors, 1)
	assert.Contains(t, audit.errors[0], "validation: [REASON001]")
}

func TestWebhookRequiresDisputeID(t *testing.T) {
	audit := &noopAudit{}
	handler := WebhookHandler(newWebhookWorkflow(audit), audit)

	payload := validPayload()
	payload.DisputeID = ""

	w := postWebhook(t, handler, payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	audit := &noopAudit{}
	handler := WebhookHandler(newWebhookWorkflow(audit), audit)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/dispute", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	handler(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
