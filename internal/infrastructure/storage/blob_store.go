// Package storage keeps uploaded deliverables on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
)

// LocalBlobStore maps keys to files below a root directory
type LocalBlobStore struct {
	root   string
	logger *zap.Logger
}

// NewLocalBlobStore creates a store rooted at dir. The directory is created on first Put.
func NewLocalBlobStore(dir string, logger *zap.Logger) *LocalBlobStore {
	return &LocalBlobStore{root: filepath.Clean(dir), logger: logger}
}

// Put streams r into a temp file next to the target and renames it into place,
// so readers never observe a partial deliverable.
func (s *LocalBlobStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	target, err := s.LocalPath(key)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		s.logger.Error("Blob write failed", zap.String("key", key), zap.Error(err))
		return 0, fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to flush %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, fmt.Errorf("failed to move %s into place: %w", key, err)
	}
	committed = true

	s.logger.Debug("Blob stored", zap.String("key", key), zap.Int64("bytes", n))
	return n, nil
}

// Open returns a reader for key or port.ErrBlobNotFound
func (s *LocalBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.LocalPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", port.ErrBlobNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}

// Delete removes key
func (s *LocalBlobStore) Delete(ctx context.Context, key string) error {
	p, err := s.LocalPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("Blob delete failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// LocalPath resolves key under the root and rejects keys that would leave it
func (s *LocalBlobStore) LocalPath(key string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	if clean == "/" || clean != "/"+strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// contextReader stops a copy once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ port.BlobStore = (*LocalBlobStore)(nil)
