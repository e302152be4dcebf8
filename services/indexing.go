package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"finrag-backend/internal/index"
	"finrag-backend/internal/logger"
	"finrag-backend/internal/telemetry"
	"finrag-backend/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrIndexBusy is returned when a rebuild is requested while another
	// rebuild is still running.
	ErrIndexBusy = errors.New("an index rebuild is already in progress")

	// ErrNoContent is returned when none of the uploaded files yielded
	// extractable text.
	ErrNoContent = errors.New("no valid text found in any uploaded PDF")
)

// DocumentExtractor extracts per-page text from a file on disk.
type DocumentExtractor interface {
	ExtractDocument(path string) (models.Document, error)
}

// Embedder turns text into a vector in the index's embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Indexer rebuilds the persistent vector index from a batch of PDF files.
// Each successful rebuild fully replaces the previous index contents.
type Indexer struct {
	extractor DocumentExtractor
	chunker   *ChunkingService
	embedder  Embedder
	store     *index.Store
	metrics   *telemetry.Metrics

	mu sync.Mutex
}

// NewIndexer creates a new indexer. metrics may be nil.
func NewIndexer(extractor DocumentExtractor, chunker *ChunkingService, embedder Embedder, store *index.Store, metrics *telemetry.Metrics) *Indexer {
	return &Indexer{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		metrics:   metrics,
	}
}

// Rebuild extracts, chunks and embeds the given files and atomically swaps
// the result in as the new index. Only one rebuild runs at a time; a second
// caller gets ErrIndexBusy immediately rather than queueing behind a
// long-running embed pass. Returns a user-facing success message.
func (ix *Indexer) Rebuild(ctx context.Context, paths []string) (string, error) {
	if !ix.mu.TryLock() {
		return "", ErrIndexBusy
	}
	defer ix.mu.Unlock()

	start := time.Now()
	tracer := otel.Tracer("finrag-backend")
	ctx, span := tracer.Start(ctx, "index.rebuild")
	defer span.End()
	span.SetAttributes(attribute.Int("index.files", len(paths)))

	docs := make([]models.Document, 0, len(paths))
	totalPages := 0
	for _, path := range paths {
		doc, err := ix.extractor.ExtractDocument(path)
		if err != nil {
			logger.Warn("Skipping unreadable PDF", "path", path, "error", err)
			continue
		}
		if !HasContent(doc) {
			logger.Warn("Skipping PDF with no extractable text", "file", doc.Name)
			continue
		}
		totalPages += len(doc.Pages)
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		ix.recordRebuild(start, "no_content")
		return "", ErrNoContent
	}

	chunks := ix.chunkAll(docs, totalPages)

	vectors, err := ix.embedAll(ctx, chunks)
	if err != nil {
		ix.recordRebuild(start, "embed_failed")
		return "", fmt.Errorf("failed to embed chunks: %w", err)
	}

	manifest := index.Manifest{
		BuiltAt:    time.Now().UTC(),
		Files:      documentNames(docs),
		TotalPages: totalPages,
		Dimensions: len(vectors[0]),
		Chunks:     chunks,
	}
	if err := ix.store.Build(manifest, vectors); err != nil {
		ix.recordRebuild(start, "store_failed")
		return "", fmt.Errorf("failed to persist index: %w", err)
	}

	ix.recordRebuild(start, "ok")
	logger.Info("Index rebuilt",
		"files", len(docs),
		"pages", totalPages,
		"chunks", len(chunks),
		"duration", time.Since(start).String())

	return fmt.Sprintf("Successfully indexed %d documents!", len(docs)), nil
}

// chunkAll chunks every document and appends the synthetic metadata chunk
// that lets collection-level questions (how many files, which names) be
// answered from retrieval alone.
func (ix *Indexer) chunkAll(docs []models.Document, totalPages int) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		chunks = append(chunks, ix.chunker.ChunkDocument(doc)...)
	}

	metadata := fmt.Sprintf(
		"[SYSTEM METADATA]\n- Total Files Indexed: %d\n- Total Pages: %d\n- Filenames: %s",
		len(docs), totalPages, strings.Join(documentNames(docs), ", "))
	chunks = append(chunks, models.Chunk{
		ChunkID: uuid.NewString(),
		Source:  models.MetadataSource,
		Order:   0,
		Text:    metadata,
	})

	return chunks
}

func (ix *Indexer) embedAll(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := ix.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (ix *Indexer) recordRebuild(start time.Time, status string) {
	if ix.metrics != nil {
		ix.metrics.RecordIndexRebuild(time.Since(start).Seconds(), status)
	}
}

func documentNames(docs []models.Document) []string {
	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		names = append(names, doc.Name)
	}
	return names
}
