package retrieval

import (
	"context"
	"fmt"
	"strings"

	"dispute-agent/internal/dispute"
	"dispute-agent/internal/llm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Result is one retrieval attempt's output.
type Result struct {
	Documents         []dispute.RuleDocument
	Query             string
	AverageSimilarity float64
}

// Scores returns the similarity scores parallel to Documents.
func (r *Result) Scores() []float64 {
	scores := make([]float64, len(r.Documents))
	for i, d := range r.Documents {
		scores[i] = d.SimilarityScore
	}
	return scores
}

// MeanSimilarity is the quality signal for a batch of scores. Empty input
// yields 0 so it can never pass the gate.
func MeanSimilarity(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// QualityGate decides whether a retrieval batch is good enough to adjudicate
// on. An empty batch always fails.
type QualityGate struct {
	SimilarityThreshold float64
}

func (g QualityGate) Evaluate(scores []float64) bool {
	if len(scores) == 0 {
		return false
	}
	return MeanSimilarity(scores) >= g.SimilarityThreshold
}

// Retriever performs rule retrieval with self-corrective query rewriting.
type Retriever struct {
	Backend     Backend
	LLM         *llm.Client
	Model       string
	Gate        QualityGate
	MaxAttempts int
	TopK        int
	Tracer      trace.Tracer
}

func NewRetriever(backend Backend, client *llm.Client, model string, similarityThreshold float64, maxAttempts, topK int, tracer trace.Tracer) *Retriever {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		Backend:     backend,
		LLM:         client,
		Model:       model,
		Gate:        QualityGate{SimilarityThreshold: similarityThreshold},
		MaxAttempts: maxAttempts,
		TopK:        topK,
		Tracer:      tracer,
	}
}

func (r *Retriever) retrieve(ctx context.Context, query string) (*Result, error) {
	docs, err := r.Backend.Query(ctx, query, r.TopK)
	if err != nil {
		return nil, err
	}
	result := &Result{Documents: docs, Query: query}
	result.AverageSimilarity = MeanSimilarity(result.Scores())
	return result, nil
}

// RetrieveWithSelfCorrection issues the initial query, and as long as the
// quality gate fails, regenerates the query with an attempt-indexed strategy
// and tries again, up to MaxAttempts backend calls. Low quality after the
// final attempt is not an error: the last result is returned with the
// attempt count and routing decides what to do with it.
func (r *Retriever) RetrieveWithSelfCorrection(ctx context.Context, initialQuery string, disputeCtx dispute.DisputePayload) (*Result, int, error) {
	ctx, span := r.Tracer.Start(ctx, "rule_retrieval self_correction")
	defer span.End()

	query := initialQuery
	var result *Result

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		var err error
		result, err = r.retrieve(ctx, query)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, attempt, err
		}

		if r.Gate.Evaluate(result.Scores()) {
			span.SetAttributes(
				attribute.Int("dispute.retrieval.attempts", attempt),
				attribute.Float64("dispute.retrieval.avg_similarity", result.AverageSimilarity),
				attribute.Bool("dispute.retrieval.gate_passed", true),
			)
			return result, attempt, nil
		}

		if attempt < r.MaxAttempts {
			rewritten, err := r.RewriteQuery(ctx, initialQuery, attempt, disputeCtx)
			if err != nil {
				// Keep the current query; the next attempt still counts.
				span.AddEvent("query_rewrite_failed", trace.WithAttributes(
					attribute.String("error", err.Error()),
				))
			} else {
				query = rewritten
			}
		}
	}

	span.SetAttributes(
		attribute.Int("dispute.retrieval.attempts", r.MaxAttempts),
		attribute.Float64("dispute.retrieval.avg_similarity", result.AverageSimilarity),
		attribute.Bool("dispute.retrieval.gate_passed", false),
	)
	return result, r.MaxAttempts, nil
}

// RewriteQuery asks the model for an alternative formulation. The strategy
// escalates with the attempt number: synonyms first, then category-level
// terms, then reason-code-anchored regulatory language.
func (r *Retriever) RewriteQuery(ctx context.Context, originalQuery string, attempt int, disputeCtx dispute.DisputePayload) (string, error) {
	var prompt string

	switch attempt {
	case 1:
		prompt = fmt.Sprintf(`Given this dispute query: %q

Rewrite it to focus on key entities and use alternative terminology.
Extract the main dispute reason, amount context, and relevant card network regulation categories.

Provide only the rewritten query, no explanation.`, originalQuery)
	case 2:
		prompt = fmt.Sprintf(`Given this dispute query: %q

Rewrite it using broader card network dispute categories and regulation types.
Focus on the general dispute category rather than specific details.
Include terms like "chargeback", "fraud", "authorization", "processing error" as relevant.

Provide only the rewritten query, no explanation.`, originalQuery)
	default:
		prompt = fmt.Sprintf(`Given this dispute with reason code %s: %q

Rewrite the query to focus on reason code %s regulations and related dispute resolution procedures.
Use formal regulatory language and reference the card network dispute resolution framework.

Provide only the rewritten query, no explanation.`, disputeCtx.ReasonCode, originalQuery, disputeCtx.ReasonCode)
	}

	resp, err := r.LLM.Generate(ctx, llm.GenerateRequest{
		Model:     r.Model,
		Prompt:    prompt,
		MaxTokens: 256,
		Stage:     "rewrite_query",
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
