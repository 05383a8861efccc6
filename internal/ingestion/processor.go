package ingestion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/storage/models"
	"github.com/AkhilKas/patient-comm-assistant/internal/vector"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

var (
	// ErrEmptyDocument rejects uploads with no extractable text.
	ErrEmptyDocument = errors.New("document contains no text")
	// ErrUnsupportedType rejects file types the pipeline cannot read.
	// PDF extraction happens upstream; this service receives plain text.
	ErrUnsupportedType = errors.New("unsupported file type")
)

var whitespaceRun = regexp.MustCompile(`[ \t]+`)

// Processor runs the upload pipeline: extract text, chunk it, and index the
// chunks.
type Processor struct {
	index   *vector.Index
	chunker *Chunker
}

func NewProcessor(index *vector.Index, chunker *Chunker) *Processor {
	return &Processor{
		index:   index,
		chunker: chunker,
	}
}

// ProcessDocument ingests one uploaded file. Re-uploading a file creates a
// new document with fresh chunk ids rather than merging.
func (p *Processor) ProcessDocument(ctx context.Context, filename string, content []byte) (*models.IngestResult, error) {
	text, err := extractText(filename, content)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}

	docID := uuid.New().String()

	drafts := p.chunker.Chunk(text)
	logger.Info("Document chunked",
		zap.String("filename", filename),
		zap.String("doc_id", docID),
		zap.Int("chunks", len(drafts)),
	)

	chunks := make([]models.Chunk, len(drafts))
	sectionSet := make(map[string]struct{})
	var sections []string
	for i, draft := range drafts {
		chunks[i] = models.Chunk{
			ID:         fmt.Sprintf("%s_chunk_%d", docID, i),
			DocumentID: docID,
			Section:    draft.Section,
			Ordinal:    i,
			Text:       draft.Text,
		}
		if _, seen := sectionSet[draft.Section]; !seen {
			sectionSet[draft.Section] = struct{}{}
			sections = append(sections, draft.Section)
		}
	}

	if err := p.index.Upsert(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to index document: %w", err)
	}

	stats := p.index.Stats()

	logger.Info("Document ingested",
		zap.String("doc_id", docID),
		zap.Int("chunks_added", len(chunks)),
		zap.Strings("sections", sections),
	)

	return &models.IngestResult{
		Filename:      filename,
		ChunksAdded:   len(chunks),
		TotalChunks:   stats.TotalChunks,
		SectionsFound: sections,
	}, nil
}

func extractText(filename string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".text":
		return string(content), nil
	case ".html", ".htm":
		return cleanHTML(string(content))
	default:
		return "", fmt.Errorf("%w: %s (use .txt, .md, or .html)", ErrUnsupportedType, filepath.Ext(filename))
	}
}

// cleanHTML strips markup and layout chrome, keeping readable body text.
func cleanHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li, td, div").Each(func(i int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text != "" {
			lines = append(lines, whitespaceRun.ReplaceAllString(text, " "))
		}
	})

	if len(lines) == 0 {
		text := strings.TrimSpace(doc.Find("body").Text())
		return whitespaceRun.ReplaceAllString(text, " "), nil
	}

	return strings.Join(lines, "\n"), nil
}
