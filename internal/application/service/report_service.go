package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

// ReportService exports assignment listings through the registered exporters
type ReportService interface {
	// Export writes the bucket's assignments in the given format and returns the content type
	Export(ctx context.Context, bucket, format string, w io.Writer) (string, error)

	// Formats lists the registered export formats
	Formats() []string
}

type reportServiceImpl struct {
	assignmentRepo port.AssignmentRepository
	exporters      map[string]port.ReportExporter
	logger         Logger
}

// NewReportService creates a new ReportService
func NewReportService(assignmentRepo port.AssignmentRepository, logger Logger, exporters ...port.ReportExporter) ReportService {
	byFormat := make(map[string]port.ReportExporter, len(exporters))
	for _, exp := range exporters {
		byFormat[exp.Format()] = exp
	}
	return &reportServiceImpl{
		assignmentRepo: assignmentRepo,
		exporters:      byFormat,
		logger:         logger,
	}
}

// Export renders the bucket listing
func (s *reportServiceImpl) Export(ctx context.Context, bucket, format string, w io.Writer) (string, error) {
	exporter, ok := s.exporters[format]
	if !ok {
		return "", fmt.Errorf("%w: unsupported report format %q (available: %s)",
			domainwf.ErrInvalidInput, format, strings.Join(s.Formats(), ", "))
	}
	if bucket == "" {
		bucket = entity.BucketAll
	}
	if !entity.ValidBucket(bucket) {
		return "", fmt.Errorf("%w: unknown bucket %q", domainwf.ErrInvalidInput, bucket)
	}

	assignments, err := s.assignmentRepo.List(ctx, bucket)
	if err != nil {
		return "", fmt.Errorf("failed to list assignments: %w", err)
	}

	if err := exporter.Export(ctx, assignments, w); err != nil {
		s.logger.Error("Report export failed", "error", err, "format", format, "bucket", bucket)
		return "", fmt.Errorf("failed to export report: %w", err)
	}

	s.logger.Info("Report exported", "format", format, "bucket", bucket, "count", len(assignments))
	return exporter.ContentType(), nil
}

// Formats lists the registered export formats
func (s *reportServiceImpl) Formats() []string {
	formats := make([]string, 0, len(s.exporters))
	for f := range s.exporters {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}
