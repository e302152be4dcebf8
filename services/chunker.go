package services

import (
	"strings"

	"finrag-backend/models"

	"github.com/google/uuid"
)

// ChunkingService splits document text into fixed-size overlapping windows.
// Overlap keeps statements that straddle a chunk boundary retrievable from
// at least one chunk.
type ChunkingService struct {
	maxChunkSize int
	overlap      int
}

// NewChunkingService creates a new chunking service. maxChunkSize must
// exceed overlap or the window could not advance.
func NewChunkingService(maxChunkSize, overlap int) *ChunkingService {
	if maxChunkSize <= 0 {
		maxChunkSize = 1200
	}
	if overlap < 0 || overlap >= maxChunkSize {
		overlap = maxChunkSize / 3
	}
	return &ChunkingService{
		maxChunkSize: maxChunkSize,
		overlap:      overlap,
	}
}

// ChunkDocument splits a document's pages into chunks labelled with the
// document name. Empty pages are skipped; page texts are joined with a
// newline before windowing so chunks may span page boundaries, matching how
// readers phrase questions about content that continues across pages.
func (cs *ChunkingService) ChunkDocument(doc models.Document) []models.Chunk {
	parts := make([]string, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		if trimmed := strings.TrimSpace(page); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return nil
	}

	var chunks []models.Chunk
	for _, text := range cs.splitText(strings.Join(parts, "\n")) {
		chunks = append(chunks, models.Chunk{
			ChunkID: uuid.NewString(),
			Source:  doc.Name,
			Order:   len(chunks),
			Text:    text,
		})
	}
	return chunks
}

// splitText windows text into maxChunkSize-rune pieces, each starting
// overlap runes before the previous piece ended.
func (cs *ChunkingService) splitText(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := cs.maxChunkSize - cs.overlap
	var pieces []string
	for start := 0; start < len(runes); start += step {
		end := start + cs.maxChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return pieces
}
