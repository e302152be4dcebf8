package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter       metric.Int64Counter
	RequestDuration      metric.Float64Histogram
	TokensUsed           metric.Int64Counter
	QuestionsAnswered    metric.Int64Counter
	IndexRebuildDuration metric.Float64Histogram
	CircuitBreakerState  metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("finrag-backend")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	questionsAnswered, err := meter.Int64Counter(
		"chat.questions.total",
		metric.WithDescription("Questions answered, by answer source"),
	)
	if err != nil {
		return nil, err
	}

	indexRebuildDuration, err := meter.Float64Histogram(
		"index.rebuild.duration",
		metric.WithDescription("Vector index rebuild duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:       requestCounter,
		RequestDuration:      requestDuration,
		TokensUsed:           tokensUsed,
		QuestionsAnswered:    questionsAnswered,
		IndexRebuildDuration: indexRebuildDuration,
		CircuitBreakerState:  circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
		attribute.String("service", "gemini"),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordQuestion records an answered question and the source that grounded it
func (m *Metrics) RecordQuestion(source string) {
	attrs := []attribute.KeyValue{
		attribute.String("answer.source", source),
	}

	m.QuestionsAnswered.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordIndexRebuild records index rebuild metrics
func (m *Metrics) RecordIndexRebuild(duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("index.status", status),
		attribute.String("service", "indexer"),
	}

	m.IndexRebuildDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
