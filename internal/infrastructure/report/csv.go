package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
)

// CSVExporter writes assignments as RFC 4180 CSV
type CSVExporter struct{}

// NewCSVExporter creates a CSV exporter
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Format implements port.ReportExporter
func (e *CSVExporter) Format() string { return "csv" }

// ContentType implements port.ReportExporter
func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

// Export implements port.ReportExporter
func (e *CSVExporter) Export(ctx context.Context, assignments []*entity.Assignment, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, a := range assignments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cw.Write(toStrings(row(a))); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", a.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

var _ port.ReportExporter = (*CSVExporter)(nil)
