package objectclient

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

var _ core.ObjectClient = (*LocalClient)(nil)

// LocalClient serves files from a directory tree. Names are slash-separated
// paths relative to the root.
type LocalClient struct {
	root string
}

func NewLocalClient(root string) (*LocalClient, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("local storage dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local storage dir %q is not a directory", root)
	}
	return &LocalClient{root: root}, nil
}

func (c *LocalClient) ListFilesByExtension(ctx context.Context, exts []string) ([]models.FileRef, error) {
	var out []models.FileRef
	err := filepath.WalkDir(c.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(c.root, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if ref, ok := matchExtension(filepath.ToSlash(rel), info.Size(), exts); ok {
			out = append(out, ref)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", c.root, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *LocalClient) Download(_ context.Context, name string) ([]byte, error) {
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return nil, fmt.Errorf("invalid object name %q", name)
	}
	return os.ReadFile(filepath.Join(c.root, filepath.FromSlash(name)))
}
