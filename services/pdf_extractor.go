package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"finrag-backend/internal/logger"
	"finrag-backend/models"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor handles per-page PDF text extraction
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractDocument extracts per-page text from the PDF at path. The document
// name is the file's base name, which later labels retrieval context. Pages
// that fail to decode are kept as empty strings so page numbering stays
// aligned with the source file.
func (e *PDFExtractor) ExtractDocument(path string) (models.Document, error) {
	doc := models.Document{Name: filepath.Base(path)}

	stat, err := os.Stat(path)
	if err != nil {
		return doc, fmt.Errorf("failed to stat PDF file: %w", err)
	}
	if stat.Size() > 200<<20 { // 200MB safety cap
		return doc, fmt.Errorf("pdf too large for in-memory extraction")
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return doc, fmt.Errorf("failed to open PDF %s: %w", doc.Name, err)
	}
	defer f.Close()

	pages := reader.NumPage()
	doc.Pages = make([]string, 0, pages)

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, "")
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract page text", "file", doc.Name, "page", i, "error", err)
			doc.Pages = append(doc.Pages, "")
			continue
		}
		doc.Pages = append(doc.Pages, strings.TrimSpace(text))
	}

	return doc, nil
}

// HasContent reports whether any page of the document carries text. Scanned
// or image-only PDFs extract to empty pages and are skipped during indexing.
func HasContent(doc models.Document) bool {
	for _, page := range doc.Pages {
		if strings.TrimSpace(page) != "" {
			return true
		}
	}
	return false
}
