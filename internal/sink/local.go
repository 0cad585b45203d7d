package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"smartkeiba/internal/domain"
)

var _ domain.Sink = (*Local)(nil)

// Local writes files below a directory.
type Local struct {
	dir string
}

// NewLocal creates a sink rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

// Put writes name atomically through a temporary file.
func (l *Local) Put(_ context.Context, name string, r io.Reader) error {
	target := filepath.Join(l.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), target)
}

func (l *Local) String() string { return "file://" + filepath.ToSlash(l.dir) }
