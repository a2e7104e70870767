package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-cms/pkg/simplecms"
)

// Dir resolves media keys to files below a base directory.
type Dir struct {
	baseDir string
}

var _ simplecms.MediaResolver = (*Dir)(nil)

// NewDir creates a resolver rooted at baseDir. The directory must exist.
func NewDir(baseDir string) (*Dir, error) {
	if baseDir == "" {
		return nil, errors.New("base directory is required")
	}
	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat media directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("media path %q is not a directory", baseDir)
	}
	return &Dir{baseDir: baseDir}, nil
}

func (d *Dir) Exists(ctx context.Context, key string) (bool, error) {
	// keys are slash separated and must stay inside the base directory
	if key == "" || strings.Contains(key, "..") {
		return false, nil
	}
	clean := filepath.Clean("/" + key)

	info, err := os.Stat(filepath.Join(d.baseDir, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat media %q: %w", key, err)
	}
	return info.Mode().IsRegular(), nil
}
