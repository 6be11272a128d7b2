package workbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"flagcli/internal/dataset"
	apperrors "flagcli/internal/errors"
)

// DefaultSheetName is used for written workbooks when no name is given.
const DefaultSheetName = "Sheet1"

// ReadWorkbook reads every sheet of an .xlsx file in workbook order.
func ReadWorkbook(path string) (Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Workbook{}, apperrors.NewIOError("failed to open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	var wb Workbook
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return Workbook{}, apperrors.NewIOError("failed to read sheet", err).
				WithContext("path", path).
				WithContext("sheet", name)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}
	return wb, nil
}

// ReadSheetRows reads the first sheet of an .xlsx file.
func ReadSheetRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewIOError("failed to open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewIOError("workbook has no sheets", nil).WithContext("path", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewIOError("failed to read sheet", err).
			WithContext("path", path).
			WithContext("sheet", sheets[0])
	}
	return rows, nil
}

// WriteOptions configures how a dataset is laid out in a written file.
type WriteOptions struct {
	SheetName string
	// BoolColumns are written as spreadsheet booleans instead of text.
	BoolColumns []string
	// BOMPrefix adds a UTF-8 BOM to CSV output so Excel detects the encoding.
	BOMPrefix bool
}

// WriteXLSX writes ds to a new workbook at path, header in the first row.
// Numeric text in its canonical form is written as a number.
func WriteXLSX(path string, ds dataset.Dataset, opts WriteOptions) error {
	sheet := opts.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewIOError("failed to create output directory", err).WithContext("path", path)
	}

	f := excelize.NewFile()
	defer f.Close()
	if sheet != DefaultSheetName {
		if err := f.SetSheetName(DefaultSheetName, sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	header := make([]interface{}, len(ds.Columns))
	for i, c := range ds.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	boolCol := make([]bool, len(ds.Columns))
	for _, name := range opts.BoolColumns {
		if i := ds.ColumnIndex(name); i >= 0 {
			boolCol[i] = true
		}
	}

	for r, row := range ds.Rows {
		values := make([]interface{}, len(row))
		for i, cell := range row {
			values[i] = cellValue(cell, boolCol[i])
		}
		cellName, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", r, err)
		}
		if err := sw.SetRow(cellName, values); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return apperrors.NewIOError("failed to save workbook", err).WithContext("path", path)
	}
	return nil
}

func cellValue(cell string, asBool bool) interface{} {
	if asBool {
		switch cell {
		case "TRUE":
			return true
		case "FALSE":
			return false
		}
	}
	if cell == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil && strconv.FormatFloat(f, 'f', -1, 64) == cell {
		return f
	}
	return cell
}
