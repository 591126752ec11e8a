package dispute

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"dispute-agent/internal/llm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const synthesisSystemPrompt = "You are a Visa dispute adjudication specialist. " +
	"You analyze card-network disputes against regulatory rules and transaction " +
	"evidence and produce structured decisions."

// AdjudicationError carries every validation failure accumulated across
// synthesis attempts.
type AdjudicationError struct {
	Attempts int
	Errors   []string
}

func (e *AdjudicationError) Error() string {
	return fmt.Sprintf("failed to generate valid decision after %d attempts: %s",
		e.Attempts, strings.Join(e.Errors, "; "))
}

// Synthesizer turns retrieved rules plus fraud evidence into a validated
// Decision. Invalid LLM output triggers a corrective retry that feeds the
// validation errors back into the prompt.
type Synthesizer struct {
	LLM         *llm.Client
	Model       string
	Temperature float64
	MaxTokens   int
	MaxAttempts int
	Tracer      trace.Tracer
}

func NewSynthesizer(client *llm.Client, model string, temperature float64, maxTokens, maxAttempts int, tracer trace.Tracer) *Synthesizer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Synthesizer{
		LLM:         client,
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		MaxAttempts: maxAttempts,
		Tracer:      tracer,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, state *State, fraudAnalysis *FraudAnalysis) (*Decision, error) {
	ctx, span := s.Tracer.Start(ctx, "workflow_node adjudication")
	defer span.End()

	span.SetAttributes(
		attribute.String("dispute.id", state.DisputeID),
		attribute.Int("dispute.rules_retrieved", len(state.RetrievedRules)),
	)

	var validationErrors []string

	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		prompt := s.buildPrompt(state, fraudAnalysis, validationErrors)

		resp, err := s.LLM.Generate(ctx, llm.GenerateRequest{
			Model:       s.Model,
			System:      synthesisSystemPrompt,
			Prompt:      prompt,
			Temperature: s.Temperature,
			MaxTokens:   s.MaxTokens,
			Stage:       "adjudication",
		})
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("decision generation failed: %w", err)
		}

		decision, errs := parseDecisionResponse(resp.Content)
		if len(errs) == 0 {
			decision.DisputeID = state.DisputeID
			span.SetAttributes(
				attribute.String("dispute.decision", decision.Decision),
				attribute.Float64("dispute.confidence", decision.ConfidenceScore),
				attribute.Int("dispute.synthesis_attempts", attempt),
			)
			return decision, nil
		}

		validationErrors = append(validationErrors, errs...)
		span.AddEvent("decision validation failed", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.StringSlice("errors", errs),
		))
	}

	err := &AdjudicationError{Attempts: s.MaxAttempts, Errors: validationErrors}
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (s *Synthesizer) buildPrompt(state *State, fraudAnalysis *FraudAnalysis, validationErrors []string) string {
	var sb strings.Builder

	sb.WriteString("Analyze this dispute and make a decision.\n\n")
	sb.WriteString("Dispute Details:\n")
	fmt.Fprintf(&sb, "- Dispute ID: %s\n", state.DisputeID)
	fmt.Fprintf(&sb, "- Customer ID: %s\n", state.Payload.CustomerID)
	fmt.Fprintf(&sb, "- Transaction ID: %s\n", state.Payload.TransactionID)
	fmt.Fprintf(&sb, "- Amount: %.2f %s\n", state.Payload.Amount, state.Payload.Currency)
	fmt.Fprintf(&sb, "- Reason Code: %s\n", state.Payload.ReasonCode)
	fmt.Fprintf(&sb, "- Description: %s\n", state.Payload.Description)

	if fraudAnalysis != nil {
		details := "None detected"
		if len(fraudAnalysis.PatternDetails) > 0 {
			details = strings.Join(fraudAnalysis.PatternDetails, ", ")
		}
		sb.WriteString("\nFraud Analysis:\n")
		fmt.Fprintf(&sb, "- Chargeback Rate: %.2f%%\n", fraudAnalysis.ChargebackRate*100)
		fmt.Fprintf(&sb, "- Risk Score: %.2f\n", fraudAnalysis.RiskScore)
		fmt.Fprintf(&sb, "- Suspicious Patterns: %t\n", fraudAnalysis.HasSuspiciousPatterns)
		fmt.Fprintf(&sb, "- Pattern Details: %s\n", details)
	}

	sb.WriteString("\nRelevant Visa Rules:\n")
	for i, rule := range state.RetrievedRules {
		fmt.Fprintf(&sb, "Rule %d: %s\n\n", i+1, rule.Content)
	}

	if len(validationErrors) > 0 {
		sb.WriteString("\nIMPORTANT: Previous attempt failed validation with these errors:\n")
		for _, err := range validationErrors {
			fmt.Fprintf(&sb, "- %s\n", err)
		}
		sb.WriteString("Please correct these issues in your response.\n")
	}

	sb.WriteString(`
Based on the evidence, make a decision:
1. "accept" - Accept the dispute (refund customer)
2. "reject" - Reject the dispute (merchant wins)
3. "escalate" - Escalate to human review

Respond with VALID JSON ONLY, no additional text:
{
    "decision": "accept|reject|escalate",
    "confidence_score": 0.85,
    "reasoning": "detailed explanation of at least 20 characters",
    "supporting_rules": ["rule reference 1", "rule reference 2"],
    "recommended_action": "specific action to take"
}

Rules:
- decision must be exactly one of: "accept", "reject", or "escalate"
- confidence_score must be a number between 0.0 and 1.0
- reasoning must be at least 20 characters
- supporting_rules must be an array of strings
- recommended_action must be a non-empty string`)

	return sb.String()
}

var decisionBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseDecisionResponse extracts and validates a Decision from LLM output.
// A nil error slice means the decision passed every schema check.
func parseDecisionResponse(content string) (*Decision, []string) {
	content = strings.TrimSpace(content)

	candidate := content
	if m := decisionBlockPattern.FindStringSubmatch(content); m != nil {
		candidate = m[1]
	} else if obj := extractJSONObject(content); obj != "" {
		candidate = obj
	}

	var decision Decision
	if err := json.Unmarshal([]byte(candidate), &decision); err != nil {
		return nil, []string{fmt.Sprintf("JSON parsing error: %v", err)}
	}

	if errs := ValidateDecision(&decision); len(errs) > 0 {
		return nil, errs
	}
	return &decision, nil
}

// extractJSONObject finds the first balanced top-level JSON object in text
// that may surround it with prose.
func extractJSONObject(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return content[start : i+1]
				}
			}
		}
	}
	return ""
}

// ValidateDecision applies the decision schema constraints and returns every
// violation found.
func ValidateDecision(d *Decision) []string {
	var errs []string

	switch d.Decision {
	case "accept", "reject", "escalate":
	default:
		errs = append(errs, fmt.Sprintf("decision must be one of accept, reject, escalate; got %q", d.Decision))
	}

	if d.ConfidenceScore < 0.0 || d.ConfidenceScore > 1.0 {
		errs = append(errs, fmt.Sprintf("confidence_score must be between 0.0 and 1.0; got %g", d.ConfidenceScore))
	}

	if len(strings.TrimSpace(d.Reasoning)) < 20 {
		errs = append(errs, "reasoning must be at least 20 characters")
	}

	if strings.TrimSpace(d.RecommendedAction) == "" {
		errs = append(errs, "recommended_action must be a non-empty string")
	}

	if d.SupportingRules == nil {
		d.SupportingRules = []string{}
	}

	return errs
}
