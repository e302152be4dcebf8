package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finrag-backend/internal/config"
	"finrag-backend/internal/index"
	"finrag-backend/internal/logger"
	"finrag-backend/internal/telemetry"
	"finrag-backend/internal/websearch"
	"finrag-backend/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Completer generates a model completion for a fully rendered prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// WebSearcher provides the web-search fallback when retrieval finds nothing.
type WebSearcher interface {
	Search(query string) []websearch.Result
}

// Inputs the gate treats as social rather than informational. Substring
// match, so "hello there" and "ok thanks" both count.
var greetingWords = []string{"hello", "hi", "hey", "good morning", "thanks", "thank you", "ok", "bye"}

const (
	noIndexGreeting = "Hello! I am FinRAG, ready to analyze your documents. Please upload a PDF file first to begin."
	noIndexBlocked  = "I cannot answer your question yet. Please upload a PDF file first to build the document knowledge base."

	webSourceMarker = "🌐 **Fetched from Web:**\n"
)

// AnswerService arbitrates between document retrieval, web search and the
// model's own knowledge to answer a question.
type AnswerService struct {
	cfg      *config.Config
	store    *index.Store
	embedder Embedder
	searcher WebSearcher
	llm      Completer
	metrics  *telemetry.Metrics
}

// NewAnswerService creates a new answer service. metrics may be nil.
func NewAnswerService(cfg *config.Config, store *index.Store, embedder Embedder, searcher WebSearcher, llm Completer, metrics *telemetry.Metrics) *AnswerService {
	return &AnswerService{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		searcher: searcher,
		llm:      llm,
		metrics:  metrics,
	}
}

// HandleQuestion answers a question. Before any index exists every question
// gets a canned reply and no model call is made. Otherwise the answer is
// grounded on document retrieval when similarity clears the cutoff, on web
// results when it does not, and on the model's own knowledge as the last
// resort. Model faults propagate to the caller.
func (s *AnswerService) HandleQuestion(ctx context.Context, question string) (models.ChatResponse, error) {
	tracer := otel.Tracer("finrag-backend")
	ctx, span := tracer.Start(ctx, "chat.answer")
	defer span.End()

	if !s.store.Exists() {
		s.recordQuestion("gate")
		span.SetAttributes(attribute.String("answer.source", "gate"))
		if isGreeting(question) {
			return models.ChatResponse{Response: noIndexGreeting}, nil
		}
		return models.ChatResponse{Response: noIndexBlocked}, nil
	}

	docContext := s.documentContext(ctx, question)
	source := SourceDocument
	if docContext == "" {
		logger.Info("Context not found in index, switching to web search", "question", question)
		if webContext := websearch.FormatResults(s.searcher.Search(question)); webContext != "" {
			docContext = webContext
			source = SourceWeb
		} else {
			source = SourceNone
		}
	}
	span.SetAttributes(attribute.String("answer.source", string(source)))
	s.recordQuestion(string(source))

	prompt := ComposePrompt(question, docContext, source, time.Now())

	llmCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.LLMTimeout)*time.Second)
	defer cancel()
	answer, err := s.llm.Complete(llmCtx, prompt)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("completion failed: %w", err)
	}

	return models.ChatResponse{
		Response:      answer,
		SourceContext: sourcePanel(answer, docContext, source),
	}, nil
}

// documentContext embeds the question and searches the current index
// snapshot. Retrieval faults degrade to an empty context so the web fallback
// can take over; they never fail the request.
func (s *AnswerService) documentContext(ctx context.Context, question string) string {
	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		logger.Warn("Question embedding failed", "error", err)
		return ""
	}

	snapshot, err := s.store.Load()
	if err != nil {
		logger.Warn("Failed to load index snapshot", "error", err)
		return ""
	}

	results, err := snapshot.Search(vector, s.cfg.RetrievalTopK)
	if err != nil {
		logger.Warn("Index search failed", "error", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	// The cutoff is judged on the best hit only. Once the best hit is close
	// enough the weaker neighbors come along as supporting context.
	if results[0].Distance > s.cfg.ScoreThreshold {
		return ""
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[File: %s]\n%s", r.Chunk.Source, r.Chunk.Text))
	}
	return strings.Join(parts, "\n\n")
}

// sourcePanel decides what grounding context is surfaced to the user
// alongside the answer. Web answers always show their sources with the web
// marker. Document answers hide the panel when the model declared the
// information missing, so the user is not shown chunks that did not answer
// the question.
func sourcePanel(answer, context string, source AnswerSource) string {
	switch source {
	case SourceWeb:
		return webSourceMarker + context
	case SourceDocument:
		if strings.Contains(strings.ToLower(answer), "information not found") {
			return ""
		}
		return context
	default:
		return ""
	}
}

func isGreeting(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, word := range greetingWords {
		if strings.Contains(q, word) {
			return true
		}
	}
	return false
}

func (s *AnswerService) recordQuestion(source string) {
	if s.metrics != nil {
		s.metrics.RecordQuestion(source)
	}
}
