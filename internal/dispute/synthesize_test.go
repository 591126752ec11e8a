package dispute

import (
	"context"
	"strings"
	"testing"

	"dispute-agent/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type scriptedProvider struct {
	responses []string
	calls     int
	prompts   []string
}

func (s *scriptedProvider) Name() string { return "openai" }

func (s *scriptedProvider) Generate(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	s.prompts = append(s.prompts, req.Prompt)
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return &llm.GenerateResponse{
		Content:      s.responses[idx],
		Model:        req.Model,
		InputTokens:  100,
		OutputTokens: 50,
	}, nil
}

func newTestSynthesizer(provider llm.Provider) *Synthesizer {
	tracer := sdktrace.NewTracerProvider().Tracer("test")
	client := &llm.Client{
		Primary:         provider,
		Tracer:          tracer,
		PrimaryProvider: "openai",
	}
	return NewSynthesizer(client, "gpt-4.1", 0.0, 1024, 3, tracer)
}

func testState() *State {
	state := NewState(DisputePayload{
		DisputeID:     "dp_77",
		CustomerID:    "cust_9",
		TransactionID: "txn_4",
		Amount:        120.00,
		Currency:      "EUR",
		ReasonCode:    "13.1",
		Description:   "Merchandise was never delivered despite repeated contact with the merchant.",
	})
	state.RetrievedRules = []RuleDocument{
		{Content: "Rule 13.1 covers merchandise not received.", SimilarityScore: 0.82},
		{Content: "Cardholders must attempt merchant resolution first.", SimilarityScore: 0.78},
	}
	return state
}

const validDecisionJSON = `{
	"decision": "accept",
	"confidence_score": 0.91,
	"reasoning": "The merchant never shipped the goods, satisfying rule 13.1 conditions.",
	"supporting_rules": ["Rule 13.1"],
	"recommended_action": "Issue full refund to cardholder"
}`

func TestSynthesizeValidFirstAttempt(t *testing.T) {
	provider := &scriptedProvider{responses: []string{validDecisionJSON}}
	s := newTestSynthesizer(provider)

	decision, err := s.Synthesize(context.Background(), testState(), nil)
	require.NoError(t, err)

	assert.Equal(t, "dp_77", decision.DisputeID, "dispute id is injected from state")
	assert.Equal(t, "accept", decision.Decision)
	assert.InDelta(t, 0.91, decision.ConfidenceScore, 1e-9)
	assert.Equal(t, 1, provider.calls)
}

func TestSynthesizeToleratesProseAroundJSON(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"Here is my analysis of the dispute:\n\n" + validDecisionJSON + "\n\nLet me know if you need more detail.",
	}}
	s := newTestSynthesizer(provider)

	decision, err := s.Synthesize(context.Background(), testState(), nil)
	require.NoError(t, err)
	assert.Equal(t, "accept", decision.Decision)
}

func TestSynthesizeToleratesCodeFence(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"```json\n" + validDecisionJSON + "\n```"}}
	s := newTestSynthesizer(provider)

	decision, err := s.Synthesize(context.Background(), testState(), nil)
	require.NoError(t, err)
	assert.Equal(t, "accept", decision.Decision)
}

func TestSynthesizeRetriesWithErrorFeedback(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"decision": "maybe", "confidence_score": 0.9, "reasoning": "A sufficiently detailed explanation here.", "recommended_action": "refund"}`,
		validDecisionJSON,
	}}
	s := newTestSynthesizer(provider)

	decision, err := s.Synthesize(context.Background(), testState(), nil)
	require.NoError(t, err)
	assert.Equal(t, "accept", decision.Decision)
	assert.Equal(t, 2, provider.calls)

	require.Len(t, provider.prompts, 2)
	assert.NotContains(t, provider.prompts[0], "Previous attempt failed validation")
	assert.Contains(t, provider.prompts[1], "Previous attempt failed validation")
	assert.Contains(t, provider.prompts[1], "decision must be one of")
}

func TestSynthesizeExhaustsAttempts(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"I cannot produce JSON for this."}}
	s := newTestSynthesizer(provider)

	_, err := s.Synthesize(context.Background(), testState(), nil)
	require.Error(t, err)

	var adjErr *AdjudicationError
	require.ErrorAs(t, err, &adjErr)
	assert.Equal(t, 3, adjErr.Attempts)
	assert.NotEmpty(t, adjErr.Errors)
	assert.Equal(t, 3, provider.calls)
}

func TestSynthesizePromptIncludesEvidence(t *testing.T) {
	provider := &scriptedProvider{responses: []string{validDecisionJSON}}
	s := newTestSynthesizer(provider)

	fa := &FraudAnalysis{
		HasSuspiciousPatterns: true,
		ChargebackRate:        0.04,
		RiskScore:             0.6,
		PatternDetails:        []string{"High chargeback rate: 4.00%"},
	}

	_, err := s.Synthesize(context.Background(), testState(), fa)
	require.NoError(t, err)

	require.Len(t, provider.prompts, 1)
	prompt := provider.prompts[0]
	assert.Contains(t, prompt, "Rule 1: Rule 13.1 covers merchandise not received.")
	assert.Contains(t, prompt, "Rule 2:")
	assert.Contains(t, prompt, "Reason Code: 13.1")
	assert.Contains(t, prompt, "High chargeback rate")
	assert.Contains(t, prompt, "Risk Score: 0.60")
}

func TestValidateDecision(t *testing.T) {
	valid := Decision{
		Decision:          "reject",
		ConfidenceScore:   0.7,
		Reasoning:         "Evidence shows the cardholder authorized this purchase.",
		RecommendedAction: "Deny the dispute",
	}
	assert.Empty(t, ValidateDecision(&valid))
	assert.NotNil(t, valid.SupportingRules, "nil supporting_rules normalizes to empty")

	for _, tc := range []struct {
		name   string
		mutate func(*Decision)
		want   string
	}{
		{"bad label", func(d *Decision) { d.Decision = "approve" }, "decision must be one of"},
		{"confidence above range", func(d *Decision) { d.ConfidenceScore = 1.5 }, "confidence_score"},
		{"confidence below range", func(d *Decision) { d.ConfidenceScore = -0.1 }, "confidence_score"},
		{"short reasoning", func(d *Decision) { d.Reasoning = "too short" }, "at least 20 characters"},
		{"empty action", func(d *Decision) { d.RecommendedAction = "  " }, "recommended_action"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := valid
			tc.mutate(&d)
			errs := ValidateDecision(&d)
			require.NotEmpty(t, errs)
			assert.Contains(t, strings.Join(errs, "; "), tc.want)
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, extractJSONObject(`prefix {"a": 1} suffix`))
	assert.Equal(t, `{"a": {"b": 2}}`, extractJSONObject(`{"a": {"b": 2}}`))
	assert.Equal(t, `{"s": "brace } inside"}`, extractJSONObject(`{"s": "brace } inside"}`))
	assert.Equal(t, "", extractJSONObject("no json here"))
	assert.Equal(t, "", extractJSONObject(`{"unterminated": true`))
}
