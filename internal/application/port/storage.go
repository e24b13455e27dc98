package port

import (
	"context"
	"errors"
	"io"

	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
)

var (
	// ErrBlobNotFound is returned when no blob exists under a key
	ErrBlobNotFound = errors.New("blob not found")
	// ErrArtifactTooLarge rejects an upload above the configured size cap
	ErrArtifactTooLarge = errors.New("artifact too large")
	// ErrInvalidArtifactName rejects a file name with nothing storable left after sanitizing
	ErrInvalidArtifactName = errors.New("invalid artifact name")
)

// BlobStore keeps raw bytes under slash-separated keys such as "asg-1/3f9c_site.zip"
type BlobStore interface {
	// Put writes r under key, replacing any previous blob, and returns the bytes written
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete is a no-op for a missing key
	Delete(ctx context.Context, key string) error
	// LocalPath resolves key for readers that need a filesystem path
	LocalPath(key string) (string, error)
}

// ArtifactStore accepts uploaded deliverables and returns stable references
type ArtifactStore interface {
	Store(ctx context.Context, assignmentID string, upload entity.FileUpload, fileType string) (entity.ArtifactRef, error)
	Delete(ctx context.Context, ref entity.ArtifactRef) error
}

// ArtifactReader streams a stored deliverable back by its recorded path
type ArtifactReader interface {
	Open(ctx context.Context, filePath string) (io.ReadCloser, error)
}
