package retrieval

import (
	"context"
	"errors"
	"testing"

	"dispute-agent/internal/dispute"
	"dispute-agent/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type mockBackend struct {
	calls   int
	queries []string
	// scores returned per call, last entry repeats
	scoresPerCall [][]float64
	err           error
}

func (m *mockBackend) Query(_ context.Context, text string, topK int) ([]dispute.RuleDocument, error) {
	m.calls++
	m.queries = append(m.queries, text)
	if m.err != nil {
		return nil, m.err
	}
	idx := m.calls - 1
	if idx >= len(m.scoresPerCall) {
		idx = len(m.scoresPerCall) - 1
	}
	scores := m.scoresPerCall[idx]
	docs := make([]dispute.RuleDocument, len(scores))
	for i, s := range scores {
		docs[i] = dispute.RuleDocument{
			Content:         "Rule text",
			Metadata:        map[string]any{"section": "1.4"},
			SimilarityScore: s,
		}
	}
	return docs, nil
}

type rewriteProvider struct {
	calls int
	fail  bool
}

func (p *rewriteProvider) Name() string { return "mock" }

func (p *rewriteProvider) Generate(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	p.calls++
	if p.fail {
		return nil, errors.New("llm unavailable")
	}
	return &llm.GenerateResponse{Content: "rewritten query v" + string(rune('0'+p.calls))}, nil
}

func testTracer() trace.Tracer {
	return sdktrace.NewTracerProvider().Tracer("test")
}

func newTestRetriever(backend Backend, provider llm.Provider) *Retriever {
	client := &llm.Client{
		Primary:         provider,
		Tracer:          testTracer(),
		PrimaryProvider: "mock",
	}
	return NewRetriever(backend, client, "test-model", 0.7, 3, 5, testTracer())
}

func testPayload() dispute.DisputePayload {
	return dispute.DisputePayload{
		DisputeID:   "disp_001",
		CustomerID:  "cust_1",
		ReasonCode:  "10.4",
		Description: "Unauthorized charge on my card",
		Amount:      299.99,
		Currency:    "USD",
	}
}

func TestQualityGateDeterministic(t *testing.T) {
	gate := QualityGate{SimilarityThreshold: 0.7}

	for _, scores := range [][]float64{
		{0.85, 0.90, 0.88},
		{0.45, 0.50},
		{0.7},
		nil,
	} {
		first := gate.Evaluate(scores)
		second := gate.Evaluate(scores)
		assert.Equal(t, first, second)
	}
}

func TestQualityGateThreshold(t *testing.T) {
	gate := QualityGate{SimilarityThreshold: 0.7}

	assert.True(t, gate.Evaluate([]float64{0.85, 0.90, 0.88}))
	assert.True(t, gate.Evaluate([]float64{0.7}))
	assert.False(t, gate.Evaluate([]float64{0.45, 0.50}))
	assert.False(t, gate.Evaluate([]float64{0.69, 0.70}))
}

func TestQualityGateFailsClosedOnEmpty(t *testing.T) {
	gate := QualityGate{SimilarityThreshold: 0.7}

	assert.False(t, gate.Evaluate(nil))
	assert.False(t, gate.Evaluate([]float64{}))
}

func TestMeanSimilarity(t *testing.T) {
	assert.InDelta(t, 0.875, MeanSimilarity([]float64{0.85, 0.90}), 0.0001)
	assert.Zero(t, MeanSimilarity(nil))
}

func TestFirstAttemptPassesGate(t *testing.T) {
	backend := &mockBackend{scoresPerCall: [][]float64{{0.8, 0.85}}}
	provider := &rewriteProvider{}
	r := newTestRetriever(backend, provider)

	result, attempts, err := r.RetrieveWithSelfCorrection(context.Background(), "reason code 10.4 unauthorized", testPayload())
	require.NoError(t, err)

	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, 0, provider.calls, "no rewrite needed when the first attempt passes")
	assert.InDelta(t, 0.825, result.AverageSimilarity, 0.0001)
}

func TestRewriteImprovesQuery(t *testing.T) {
	backend := &mockBackend{scoresPerCall: [][]float64{
		{0.45, 0.50},
		{0.80, 0.90},
	}}
	provider := &rewriteProvider{}
	r := newTestRetriever(backend, provider)

	result, attempts, err := r.RetrieveWithSelfCorrection(context.Background(), "initial query", testPayload())
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, backend.calls)
	assert.Equal(t, 1, provider.calls)
	require.Len(t, backend.queries, 2)
	assert.Equal(t, "initial query", backend.queries[0])
	assert.NotEqual(t, "initial query", backend.queries[1])
	assert.True(t, result.AverageSimilarity >= 0.7)
}

func TestExhaustionReturnsLastResult(t *testing.T) {
	backend := &mockBackend{scoresPerCall: [][]float64{{0.45, 0.50}}}
	provider := &rewriteProvider{}
	r := newTestRetriever(backend, provider)

	result, attempts, err := r.RetrieveWithSelfCorrection(context.Background(), "initial query", testPayload())
	require.NoError(t, err, "low quality is a routing outcome, not an error")

	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, backend.calls)
	assert.Equal(t, 2, provider.calls, "rewrites happen between attempts, not after the last")
	assert.InDelta(t, 0.475, result.AverageSimilarity, 0.0001)
}

func TestBackendCallBounds(t *testing.T) {
	for _, scores := range [][]float64{{0.9}, {0.1}, {}} {
		backend := &mockBackend{scoresPerCall: [][]float64{scores}}
		r := newTestRetriever(backend, &rewriteProvider{})

		_, _, err := r.RetrieveWithSelfCorrection(context.Background(), "q", testPayload())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, backend.calls, 1)
		assert.LessOrEqual(t, backend.calls, 3)
	}
}

func TestBackendErrorPropagates(t *testing.T) {
	backend := &mockBackend{err: errors.New("vector store down")}
	r := newTestRetriever(backend, &rewriteProvider{})

	_, attempts, err := r.RetrieveWithSelfCorrection(context.Background(), "q", testPayload())
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, backend.calls)
}

func TestRewriteFailureKeepsQueryAndRetries(t *testing.T) {
	backend := &mockBackend{scoresPerCall: [][]float64{{0.3}}}
	provider := &rewriteProvider{fail: true}
	r := newTestRetriever(backend, provider)

	_, attempts, err := r.RetrieveWithSelfCorrection(context.Background(), "stable query", testPayload())
	require.NoError(t, err)

	assert.Equal(t, 3, attempts)
	for _, q := range backend.queries {
		assert.Equal(t, "stable query", q)
	}
}

func TestRewriteStrategiesAreAttemptIndexed(t *testing.T) {
	var prompts []string
	provider := &promptCapturingProvider{prompts: &prompts}
	client := &llm.Client{Primary: provider, Tracer: testTracer(), PrimaryProvider: "mock"}
	r := NewRetriever(&mockBackend{scoresPerCall: [][]float64{{0.9}}}, client, "test-model", 0.7, 3, 5, testTracer())

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := r.RewriteQuery(context.Background(), "original", attempt, testPayload())
		require.NoError(t, err)
	}

	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[0], "alternative terminology")
	assert.Contains(t, prompts[1], "chargeback")
	assert.Contains(t, prompts[2], "reason code 10.4")
}

type promptCapturingProvider struct {
	prompts *[]string
}

func (p *promptCapturingProvider) Name() string { return "mock" }

func (p *promptCapturingProvider) Generate(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	*p.prompts = append(*p.prompts, req.Prompt)
	return &llm.GenerateResponse{Content: "ok"}, nil
}
