package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

var _ core.Extractor = (*DOCXExtractor)(nil)

// DOCXExtractor reads paragraphs through docconv, which emits one line per
// paragraph or break.
type DOCXExtractor struct{}

func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

func (e *DOCXExtractor) Extract(ctx context.Context, name string, content []byte) (*models.Document, error) {
	body, _, err := docconv.ConvertDocx(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("convert docx: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var paragraphs []string
	for _, line := range strings.Split(body, "\n") {
		if text := CleanText(line); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	return &models.Document{
		Text: strings.Join(paragraphs, "\n"),
		Metadata: map[string]any{
			"source":           name,
			"file_type":        string(models.FileTypeDOCX),
			"total_paragraphs": len(paragraphs),
		},
	}, nil
}
