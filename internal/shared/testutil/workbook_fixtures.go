package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// FixtureSheet is one sheet of a generated workbook. Cells are written as text.
type FixtureSheet struct {
	Name string
	Rows [][]string
}

// WriteWorkbook creates an .xlsx file at path holding sheets in order.
func WriteWorkbook(t testing.TB, path string, sheets ...FixtureSheet) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create fixture directory: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.Name); err != nil {
				t.Fatalf("rename fixture sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			t.Fatalf("add fixture sheet %q: %v", sh.Name, err)
		}

		for r, row := range sh.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("fixture cell: %v", err)
			}
			values := make([]interface{}, len(row))
			for c, v := range row {
				values[c] = v
			}
			if err := f.SetSheetRow(sh.Name, cell, &values); err != nil {
				t.Fatalf("write fixture row %d of %q: %v", r, sh.Name, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save fixture workbook: %v", err)
	}
}

// WriteWorkbookAt is WriteWorkbook followed by setting the file's
// modification time, for tests that pick the newest input.
func WriteWorkbookAt(t testing.TB, path string, mod time.Time, sheets ...FixtureSheet) {
	t.Helper()
	WriteWorkbook(t, path, sheets...)
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("set fixture mtime: %v", err)
	}
}

// ReadWorkbookRows returns the display rows of the named sheet.
func ReadWorkbookRows(t testing.TB, path, sheet string) [][]string {
	t.Helper()

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook %s: %v", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("read sheet %q: %v", sheet, err)
	}
	return rows
}
