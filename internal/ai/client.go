package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finrag-backend/internal/config"
	"finrag-backend/internal/logger"
	"finrag-backend/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// ErrNotConfigured is returned by AI calls when GEMINI_API_KEY was absent at
// startup. Startup itself does not fail on a missing key.
var ErrNotConfigured = errors.New("GEMINI_API_KEY not configured")

// Client wraps the Gemini API for completions and embeddings. Completion
// calls go through a circuit breaker and a rate limiter; when the provider is
// unavailable the error propagates to the caller (there is no canned
// fallback answer).
type Client struct {
	cfg         *config.Config
	client      *genai.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	metrics     *telemetry.Metrics
}

// NewClient creates the Gemini client. metrics may be nil.
func NewClient(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Client, error) {
	c := &Client{
		cfg:     cfg,
		metrics: metrics,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "GeminiAPI",
			MaxRequests: 5,
			Interval:    10 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
				if metrics != nil {
					metrics.RecordCircuitBreakerState(name, to.String())
				}
			},
		}),
		// ~10 requests per second with small bursts
		rateLimiter: rate.NewLimiter(rate.Limit(10), 5),
	}

	if cfg.GeminiAPIKey == "" {
		// Later calls fail with ErrNotConfigured.
		return c, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c.client = client
	return c, nil
}

// Complete runs one deterministic completion (temperature 0) on the prompt
// and returns the model's text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", ErrNotConfigured
	}

	tracer := otel.Tracer("finrag-backend/ai")
	ctx, span := tracer.Start(ctx, "gemini.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", c.cfg.GenerationModel),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		model := c.client.GenerativeModel(c.cfg.GenerationModel)
		model.SetTemperature(0)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
		text, err := extractResponseText(resp)
		if err != nil {
			return nil, err
		}
		tokens := extractTokenUsage(resp)
		span.SetAttributes(attribute.Int("gemini.tokens", tokens))
		if c.metrics != nil {
			c.metrics.RecordTokensUsed(int64(tokens), c.cfg.GenerationModel)
		}
		return text, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		if err == gobreaker.ErrOpenState {
			return "", fmt.Errorf("llm provider unavailable: %w", err)
		}
		return "", fmt.Errorf("llm completion failed: %w", err)
	}

	return result.(string), nil
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.client == nil {
		return nil, ErrNotConfigured
	}

	model := c.client.EmbeddingModel(c.cfg.EmbeddingsModel)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embedding.Values, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates in response")
	}
	text := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	return text, nil
}

func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	return 0
}
