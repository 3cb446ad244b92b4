package objectclient

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/SiegfredLorelle/iskobot-api/internal/config"
	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

// New returns the object client selected by STORAGE_BACKEND.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (core.ObjectClient, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		c, err := NewS3Client(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.StorageLocal:
		c, err := NewLocalClient(cfg.LocalStorageDir)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// matchExtension builds a FileRef for name when its extension (after the
// last dot, case-insensitive) is one of exts. An empty exts matches all.
func matchExtension(name string, size int64, exts []string) (models.FileRef, bool) {
	if strings.HasSuffix(name, "/") {
		return models.FileRef{}, false
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if len(exts) > 0 {
		found := false
		for _, e := range exts {
			if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
				found = true
				break
			}
		}
		if !found {
			return models.FileRef{}, false
		}
	}
	t, _ := models.ParseFileType(ext)
	return models.FileRef{Name: name, Size: size, Type: t}, true
}
