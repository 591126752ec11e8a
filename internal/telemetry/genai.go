package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type GenAIMetrics struct {
	TokenUsage        metric.Float64Histogram
	OperationDuration metric.Float64Histogram
	Cost              metric.Float64Counter
	RetryCount        metric.Int64Counter
	FallbackCount     metric.Int64Counter
	ErrorCount        metric.Int64Counter

	WorkflowDuration  metric.Float64Histogram
	RetrievalAttempts metric.Float64Histogram
	Confidence        metric.Float64Histogram
	DecisionCount     metric.Int64Counter
	EscalationCount   metric.Int64Counter
	NotifyRetryCount  metric.Int64Counter
}

func NewGenAIMetrics(m metric.Meter) (*GenAIMetrics, error) {
	tokenUsage, err := m.Float64Histogram("gen_ai.client.token.usage",
		metric.WithUnit("{token}"),
		metric.WithDescription("Number of tokens used per LLM call"),
	)
	if err != nil {
		return nil, err
	}

	operationDuration, err := m.Float64Histogram("gen_ai.client.operation.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall-clock duration of LLM API call"),
	)
	if err != nil {
		return nil, err
	}

	cost, err := m.Float64Counter("gen_ai.client.cost",
		metric.WithUnit("usd"),
		metric.WithDescription("Cumulative cost of LLM calls in USD"),
	)
	if err != nil {
		return nil, err
	}

	retryCount, err := m.Int64Counter("gen_ai.client.retry.count",
		metric.WithUnit("{retry}"),
		metric.WithDescription("Number of retry attempts"),
	)
	if err != nil {
		return nil, err
	}

	fallbackCount, err := m.Int64Counter("gen_ai.client.fallback.count",
		metric.WithUnit("{fallback}"),
		metric.WithDescription("Number of fallback provider triggers"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := m.Int64Counter("gen_ai.client.error.count",
		metric.WithUnit("{error}"),
		metric.WithDescription("Number of LLM call errors"),
	)
	if err != nil {
		return nil, err
	}

	workflowDuration, err := m.Float64Histogram("dispute.workflow.duration",
		metric.WithUnit("s"),
		metric.WithDescription("End-to-end dispute workflow duration"),
	)
	if err != nil {
		return nil, err
	}

	retrievalAttempts, err := m.Float64Histogram("dispute.retrieval.attempts",
		metric.WithUnit("{attempt}"),
		metric.WithDescription("Retrieval attempts used per dispute"),
	)
	if err != nil {
		return nil, err
	}

	confidence, err := m.Float64Histogram("dispute.decision.confidence",
		metric.WithUnit("1"),
		metric.WithDescription("Adjudication confidence score"),
	)
	if err != nil {
		return nil, err
	}

	decisionCount, err := m.Int64Counter("dispute.decision.count",
		metric.WithUnit("{decision}"),
		metric.WithDescription("Adjudication decisions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	escalationCount, err := m.Int64Counter("dispute.escalation.count",
		metric.WithUnit("{escalation}"),
		metric.WithDescription("Disputes routed to human review"),
	)
	if err != nil {
		return nil, err
	}

	notifyRetryCount, err := m.Int64Counter("dispute.notification.retry.count",
		metric.WithUnit("{retry}"),
		metric.WithDescription("Customer notification retry attempts"),
	)
	if err != nil {
		return nil, err
	}

	return &GenAIMetrics{
		TokenUsage:        tokenUsage,
		OperationDuration: operationDuration,
		Cost:              cost,
		RetryCount:        retryCount,
		FallbackCount:     fallbackCount,
		ErrorCount:        errorCount,
		WorkflowDuration:  workflowDuration,
		RetrievalAttempts: retrievalAttempts,
		Confidence:        confidence,
		DecisionCount:     decisionCount,
		EscalationCount:   escalationCount,
		NotifyRetryCount:  notifyRetryCount,
	}, nil
}

type RecordParams struct {
	Provider     string
	Model        string
	Stage        string
	InputTokens  int
	OutputTokens int
	DurationSec  float64
	CostUSD      float64
}

func (g *GenAIMetrics) RecordGenAIMetrics(ctx context.Context, p RecordParams) {
	baseAttrs := []attribute.KeyValue{
		attribute.String("gen_ai.operation.name", "chat"),
		attribute.String("gen_ai.provider.name", p.Provider),
		attribute.String("gen_ai.request.model", p.Model),
	}
	if p.Stage != "" {
		baseAttrs = append(baseAttrs, attribute.String("dispute.stage", p.Stage))
	}
	attrs := metric.WithAttributes(baseAttrs...)

	g.TokenUsage.Record(ctx, float64(p.InputTokens),
		attrs,
		metric.WithAttributes(attribute.String("gen_ai.token.type", "input")),
	)
	g.TokenUsage.Record(ctx, float64(p.OutputTokens),
		attrs,
		metric.WithAttributes(attribute.String("gen_ai.token.type", "output")),
	)
	g.OperationDuration.Record(ctx, p.DurationSec, attrs)
	g.Cost.Add(ctx, p.CostUSD, attrs)
}

func WithProviderModel(provider, model string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("gen_ai.provider.name", provider),
		attribute.String("gen_ai.request.model", model),
	)
}

func WithBoolAttr(key string, val bool) metric.MeasurementOption {
	return metric.WithAttributes(attribute.Bool(key, val))
}

func WithTerminalNode(node string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("dispute.terminal_node", node))
}

func WithDecision(decision string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("dispute.decision", decision))
}
