package utils

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/cadeo/cadeo-dashboard/dashboard"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ExportSheet is the worksheet name used in XLSX exports
const ExportSheet = "Orders"

// ExportError represents an export failure
type ExportError struct {
	Code    string
	Message string
}

func (e *ExportError) Error() string {
	return e.Message
}

// ContentType returns the MIME type of an export format
func ContentType(format string) (string, error) {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8", nil
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	default:
		return "", &ExportError{
			Code:    "INVALID_EXPORT_FORMAT",
			Message: fmt.Sprintf("Export format must be %s or %s", FormatCSV, FormatXLSX),
		}
	}
}

// WriteTable writes view to w in the given format
func WriteTable(w io.Writer, format string, view dashboard.TableView) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, view)
	case FormatXLSX:
		return WriteXLSX(w, view)
	default:
		_, err := ContentType(format)
		return err
	}
}

// WriteCSV writes the header and rows of view as CSV
func WriteCSV(w io.Writer, view dashboard.TableView) error {
	writer := csv.NewWriter(w)

	header := make([]string, len(view.Columns))
	for i, c := range view.Columns {
		header[i] = string(c)
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(view.Columns))
	for _, row := range view.Rows {
		for i, value := range row {
			record[i] = FormatCell(value)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes view as a single-sheet workbook. Prices are stored as
// numbers so they can be summed in a spreadsheet.
func WriteXLSX(w io.Writer, view dashboard.TableView) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(view.Columns))
	for i, c := range view.Columns {
		header[i] = string(c)
	}
	if err := f.SetSheetRow(ExportSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for r, row := range view.Rows {
		cells := make([]any, len(row))
		for i, value := range row {
			cells[i] = xlsxValue(value)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ExportSheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// FormatCell renders a table value as text
func FormatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case decimal.Decimal:
		return v.StringFixed(2)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func xlsxValue(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case decimal.Decimal:
		return v.InexactFloat64()
	default:
		return v
	}
}
