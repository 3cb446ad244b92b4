package core

import (
	"context"

	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

// Extractor converts the bytes of one stored file into a Document.
type Extractor interface {
	Extract(ctx context.Context, name string, content []byte) (*models.Document, error)
}
