package extraction

import (
	"context"
	"fmt"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

// Registry dispatches a stored file to the extractor registered for its
// declared type.
type Registry struct {
	extractors map[models.FileType]core.Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[models.FileType]core.Extractor)}
}

// NewDefaultRegistry wires the PDF, DOCX and PPTX extractors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(models.FileTypePDF, NewPDFExtractor())
	r.Register(models.FileTypeDOCX, NewDOCXExtractor())
	r.Register(models.FileTypePPTX, NewPPTXExtractor())
	return r
}

// Register adds or replaces the extractor for t.
func (r *Registry) Register(t models.FileType, e core.Extractor) {
	r.extractors[t] = e
}

// Extensions returns the extensions the registry can handle.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.extractors))
	for _, t := range models.SupportedFileTypes {
		if _, ok := r.extractors[t]; ok {
			exts = append(exts, string(t))
		}
	}
	return exts
}

// Extract converts ref's content. Unknown types fail with
// core.ErrUnsupportedSourceType.
func (r *Registry) Extract(ctx context.Context, ref models.FileRef, content []byte) (*models.Document, error) {
	e, ok := r.extractors[ref.Type]
	if !ok {
		return nil, fmt.Errorf("%s (type %q): %w", ref.Name, ref.Type, core.ErrUnsupportedSourceType)
	}
	doc, err := e.Extract(ctx, ref.Name, content)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", ref.Name, err)
	}
	return doc, nil
}
