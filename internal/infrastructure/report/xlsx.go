package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
)

const sheetName = "Assignments"

// XLSXExporter writes assignments into a single-sheet workbook
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates an Excel exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// Format implements port.ReportExporter
func (e *XLSXExporter) Format() string { return "xlsx" }

// ContentType implements port.ReportExporter
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Export implements port.ReportExporter
func (e *XLSXExporter) Export(ctx context.Context, assignments []*entity.Assignment, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, a := range assignments {
		if err := ctx.Err(); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row(a)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", a.ID, err)
		}
	}

	e.decorate(f, len(assignments))

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// decorate applies header styling, widths and a filter. Failures only cost formatting.
func (e *XLSXExporter) decorate(f *excelize.File, rows int) {
	lastCol, _ := excelize.ColumnNumberToName(len(header))

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err == nil {
		err = f.SetCellStyle(sheetName, "A1", lastCol+"1", style)
	}
	if err == nil {
		err = f.SetColWidth(sheetName, "A", lastCol, 18)
	}
	if err == nil {
		err = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}
	if err == nil && rows > 0 {
		err = f.AutoFilter(sheetName, fmt.Sprintf("A1:%s%d", lastCol, rows+1), nil)
	}
	if err != nil {
		e.logger.Warn("Failed to format report sheet", zap.Error(err))
	}
}

var _ port.ReportExporter = (*XLSXExporter)(nil)
