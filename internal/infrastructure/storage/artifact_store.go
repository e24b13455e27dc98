package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// PageCounter returns the number of pages of a stored document
type PageCounter func(fullPath string) (int, error)

// LocalArtifactStore keeps deliverables under <assignment>/<uuid>_<name> keys
type LocalArtifactStore struct {
	blobs       port.BlobStore
	countPages  PageCounter
	maxFileSize int64
	logger      *zap.Logger
}

// ArtifactOption configures LocalArtifactStore
type ArtifactOption func(*LocalArtifactStore)

// WithMaxFileSize rejects uploads larger than n bytes. Zero disables the limit.
func WithMaxFileSize(n int64) ArtifactOption {
	return func(s *LocalArtifactStore) {
		s.maxFileSize = n
	}
}

// WithPageCounter replaces the PDF page counter
func WithPageCounter(fn PageCounter) ArtifactOption {
	return func(s *LocalArtifactStore) {
		s.countPages = fn
	}
}

// NewLocalArtifactStore creates an artifact store on top of a BlobStore
func NewLocalArtifactStore(blobs port.BlobStore, logger *zap.Logger, opts ...ArtifactOption) *LocalArtifactStore {
	s := &LocalArtifactStore{
		blobs:      blobs,
		countPages: countPDFPages,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store saves one upload and returns its reference. The stored name is unique per call,
// so uploading the same file name twice keeps both versions.
func (s *LocalArtifactStore) Store(ctx context.Context, assignmentID string, upload entity.FileUpload, fileType string) (entity.ArtifactRef, error) {
	folder := SanitizeName(assignmentID)
	name := SanitizeName(upload.FileName)
	if folder == "" || name == "" {
		return entity.ArtifactRef{}, fmt.Errorf("%w: %q for assignment %q", port.ErrInvalidArtifactName, upload.FileName, assignmentID)
	}
	if s.maxFileSize > 0 && int64(len(upload.Content)) > s.maxFileSize {
		return entity.ArtifactRef{}, fmt.Errorf("%w: %s exceeds %d bytes", port.ErrArtifactTooLarge, upload.FileName, s.maxFileSize)
	}

	relPath := path.Join(folder, uuid.NewString()[:8]+"_"+name)
	size, err := s.blobs.Put(ctx, relPath, bytes.NewReader(upload.Content))
	if err != nil {
		return entity.ArtifactRef{}, fmt.Errorf("failed to store %s: %w", upload.FileName, err)
	}

	ref := entity.ArtifactRef{
		FileName: upload.FileName,
		FilePath: relPath,
		FileType: fileType,
		Size:     size,
	}

	if isPDF(upload) {
		pages, err := s.pageCount(relPath)
		if err != nil {
			s.logger.Warn("Could not read PDF page count",
				zap.String("assignment_id", assignmentID),
				zap.String("file", upload.FileName),
				zap.Error(err))
		}
		ref.PageCount = pages
	}

	s.logger.Info("Artifact stored",
		zap.String("assignment_id", assignmentID),
		zap.String("path", relPath),
		zap.String("file_type", fileType),
		zap.Int64("size", ref.Size),
		zap.Int("pages", ref.PageCount))

	return ref, nil
}

// Delete removes a stored artifact
func (s *LocalArtifactStore) Delete(ctx context.Context, ref entity.ArtifactRef) error {
	return s.blobs.Delete(ctx, ref.FilePath)
}

// Open streams a stored deliverable by the path recorded on the assignment
func (s *LocalArtifactStore) Open(ctx context.Context, filePath string) (io.ReadCloser, error) {
	return s.blobs.Open(ctx, filePath)
}

func (s *LocalArtifactStore) pageCount(key string) (int, error) {
	local, err := s.blobs.LocalPath(key)
	if err != nil {
		return 0, err
	}
	return s.countPages(local)
}

// SanitizeName returns a filesystem-safe single path segment
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "")
	name = unsafeChars.ReplaceAllString(name, "")
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func isPDF(upload entity.FileUpload) bool {
	return upload.MimeType == "application/pdf" || strings.EqualFold(filepath.Ext(upload.FileName), ".pdf")
}

func countPDFPages(fullPath string) (int, error) {
	doc, err := fitz.New(fullPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

var (
	_ port.ArtifactStore  = (*LocalArtifactStore)(nil)
	_ port.ArtifactReader = (*LocalArtifactStore)(nil)
)
