package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"finrag-backend/internal/config"
	"finrag-backend/internal/index"
	"finrag-backend/internal/websearch"
	"finrag-backend/models"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeCompleter struct {
	reply      string
	err        error
	calls      int
	lastPrompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	return f.reply, f.err
}

type fakeSearcher struct {
	results []websearch.Result
}

func (f *fakeSearcher) Search(query string) []websearch.Result {
	return f.results
}

func testAnswerConfig() *config.Config {
	return &config.Config{
		RetrievalTopK:  8,
		ScoreThreshold: 2.0,
		LLMTimeout:     5,
	}
}

func buildAnswerIndex(t *testing.T, store *index.Store, vectors [][]float32) {
	t.Helper()

	chunks := make([]models.Chunk, len(vectors))
	for i := range vectors {
		chunks[i] = models.Chunk{ChunkID: "c", Source: "report.pdf", Order: i, Text: "chunk text"}
	}
	m := index.Manifest{BuiltAt: time.Now().UTC(), Files: []string{"report.pdf"}, Chunks: chunks}
	if err := store.Build(m, vectors); err != nil {
		t.Fatalf("build failed: %v", err)
	}
}

func TestGateBeforeFirstIndex(t *testing.T) {
	store := index.NewStore(t.TempDir())
	llm := &fakeCompleter{reply: "should not be called"}
	svc := NewAnswerService(testAnswerConfig(), store, &fakeEmbedder{}, &fakeSearcher{}, llm, nil)

	resp, err := svc.HandleQuestion(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Response != noIndexGreeting {
		t.Errorf("greeting should get the greeting reply, got %q", resp.Response)
	}

	resp, err = svc.HandleQuestion(context.Background(), "What was the revenue?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Response != noIndexBlocked {
		t.Errorf("question should be blocked before upload, got %q", resp.Response)
	}
	if resp.SourceContext != "" {
		t.Error("gate replies carry no source context")
	}

	if llm.calls != 0 {
		t.Errorf("model must not be called before an index exists, got %d calls", llm.calls)
	}
}

func TestDocumentModeWhenRetrievalHits(t *testing.T) {
	store := index.NewStore(t.TempDir())
	buildAnswerIndex(t, store, [][]float32{{0, 0}})

	llm := &fakeCompleter{reply: "According to Page 1, revenue was $10M."}
	svc := NewAnswerService(testAnswerConfig(), store, &fakeEmbedder{vec: []float32{0.1, 0}}, &fakeSearcher{}, llm, nil)

	resp, err := svc.HandleQuestion(context.Background(), "What was the revenue?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.SourceContext, "[File: report.pdf]") {
		t.Errorf("source context should name the document, got %q", resp.SourceContext)
	}
	if !strings.Contains(llm.lastPrompt, "SOURCE TYPE: DOCUMENT") {
		t.Error("prompt should be in document mode")
	}
	if !strings.Contains(llm.lastPrompt, "chunk text") {
		t.Error("prompt should carry the retrieved chunk")
	}
}

func TestWebFallbackWhenThresholdMissed(t *testing.T) {
	store := index.NewStore(t.TempDir())
	// Far vector: best distance is 100, past the cutoff.
	buildAnswerIndex(t, store, [][]float32{{10, 0}})

	searcher := &fakeSearcher{results: []websearch.Result{
		{Title: "Some Site", Snippet: "an answer", Link: "https://example.com"},
	}}
	llm := &fakeCompleter{reply: "Based on web search results, the answer is X."}
	svc := NewAnswerService(testAnswerConfig(), store, &fakeEmbedder{vec: []float32{0, 0}}, searcher, llm, nil)

	resp, err := svc.HandleQuestion(context.Background(), "Who is the CEO of Example Corp?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(llm.lastPrompt, "SOURCE TYPE: WEB") {
		t.Error("prompt should be in web mode")
	}
	if !strings.HasPrefix(resp.SourceContext, "🌐 **Fetched from Web:**\n") {
		t.Errorf("web answers should carry the web marker, got %q", resp.SourceContext)
	}
	if !strings.Contains(resp.SourceContext, "Some Site") {
		t.Error("source context should carry the web results")
	}
}

func TestNoneModeWhenNothingGrounds(t *testing.T) {
	store := index.NewStore(t.TempDir())
	buildAnswerIndex(t, store, [][]float32{{10, 0}})

	llm := &fakeCompleter{reply: "(General Knowledge): AI is..."}
	svc := NewAnswerService(testAnswerConfig(), store, &fakeEmbedder{vec: []float32{0, 0}}, &fakeSearcher{}, llm, nil)

	resp, err := svc.HandleQuestion(context.Background(), "What is AI?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(llm.lastPrompt, "SOURCE TYPE: NONE") {
		t.Error("prompt should be in none mode")
	}
	if resp.SourceContext != "" {
		t.Errorf("none mode carries no source context, got %q", resp.SourceContext)
	}
}

func TestSourcePanelSuppressedWhenInformationNotFound(t *testing.T) {
	store := index.NewStore(t.TempDir())
	buildAnswerIndex(t, store, [][]float32{{0, 0}})

	llm := &fakeCompleter{reply: "Information not found in the document."}
	svc := NewAnswerService(testAnswerConfig(), store, &fakeEmbedder{vec: []float32{0, 0}}, &fakeSearcher{}, llm, nil)

	resp, err := svc.HandleQuestion(context.Background(), "What is the CFO's shoe size?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.SourceContext != "" {
		t.Errorf("source context should be hidden when the model found nothing, got %q", resp.SourceContext)
	}
}

func TestEmbedFaultDegradesToFallback(t *testing.T) {
	store := index.NewStore(t.TempDir())
	buildAnswerIndex(t, store, [][]float32{{0, 0}})

	llm := &fakeCompleter{reply: "ok"}
	svc := NewAnswerService(testAnswerConfig(), store,
		&fakeEmbedder{err: errors.New("embed down")}, &fakeSearcher{}, llm, nil)

	_, err := svc.HandleQuestion(context.Background(), "a question")
	if err != nil {
		t.Fatalf("embedding faults must not fail the request: %v", err)
	}
	if !strings.Contains(llm.lastPrompt, "SOURCE TYPE: NONE") {
		t.Error("embedding fault should degrade to none mode")
	}
}

func TestCompletionErrorPropagates(t *testing.T) {
	store := index.NewStore(t.TempDir())
	buildAnswerIndex(t, store, [][]float32{{0, 0}})

	llm := &fakeCompleter{err: errors.New("provider down")}
	svc := NewAnswerService(testAnswerConfig(), store, &fakeEmbedder{vec: []float32{0, 0}}, &fakeSearcher{}, llm, nil)

	if _, err := svc.HandleQuestion(context.Background(), "a question"); err == nil {
		t.Fatal("completion errors must propagate, not be replaced with a canned answer")
	}
}
