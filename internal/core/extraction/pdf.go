package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

var _ core.Extractor = (*PDFExtractor)(nil)

// PDFExtractor reads text page by page using ledongthuc/pdf.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract joins the cleaned text of every non-empty page with newlines and
// records the 1-based numbers of those pages.
func (e *PDFExtractor) Extract(ctx context.Context, name string, content []byte) (*models.Document, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := r.NumPage()
	pages := make([]string, 0, total)
	pageNumbers := make([]int, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		raw, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		if text := CleanText(raw); text != "" {
			pages = append(pages, text)
			pageNumbers = append(pageNumbers, i)
		}
	}

	return &models.Document{
		Text: strings.Join(pages, "\n"),
		Metadata: map[string]any{
			"source":       name,
			"file_type":    string(models.FileTypePDF),
			"page_numbers": pageNumbers,
			"total_pages":  total,
		},
	}, nil
}
