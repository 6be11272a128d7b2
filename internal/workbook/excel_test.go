package workbook

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"flagcli/internal/dataset"
	apperrors "flagcli/internal/errors"
	"flagcli/internal/shared/testutil"
)

func TestReadWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.xlsx")
	testutil.WriteWorkbook(t, path,
		testutil.FixtureSheet{Name: "Retail", Rows: [][]string{{"Identifiers", "Exclude"}, {"SHOP", "TEST"}}},
		testutil.FixtureSheet{Name: "Commercial", Rows: [][]string{{"Fields To Be Searched"}, {"Description"}}},
	)

	wb, err := ReadWorkbook(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Retail", "Commercial"}, wb.SheetNames())
	assert.Equal(t, [][]string{{"Identifiers", "Exclude"}, {"SHOP", "TEST"}}, wb.Sheets[0].Rows)
	assert.Equal(t, [][]string{{"Fields To Be Searched"}, {"Description"}}, wb.Sheets[1].Rows)

	loaded, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wb, loaded)
}

func TestReadWorkbook_Missing(t *testing.T) {
	_, err := ReadWorkbook(filepath.Join(t.TempDir(), "nope.xlsx"))
	require.Error(t, err)
	assert.True(t, apperrors.IsIO(err))

	_, err = ReadSheetRows(filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.True(t, apperrors.IsIO(err))
}

func TestReadSheetRows_FirstSheetOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.xlsx")
	testutil.WriteWorkbook(t, path,
		testutil.FixtureSheet{Name: "Data", Rows: [][]string{{"Account,,Product"}, {"1", "Checking", "CHK"}}},
		testutil.FixtureSheet{Name: "Other", Rows: [][]string{{"ignored"}}},
	)

	rows, err := ReadSheetRows(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Account,,Product"}, {"1", "Checking", "CHK"}}, rows)
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.xlsx")
	ds := dataset.New(
		[]string{"Account", "Amount", "Code", "Retail Indicator"},
		[][]string{
			{"1", "12.5", "007", "TRUE"},
			{"2", "", "A1", "FALSE"},
		},
	)

	err := WriteXLSX(path, ds, WriteOptions{SheetName: "Flags", BoolColumns: []string{"Retail Indicator", "missing"}})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Flags"}, f.GetSheetList())

	rows, err := f.GetRows("Flags")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ds.Columns, rows[0])
	assert.Equal(t, []string{"1", "12.5", "007", "TRUE"}, rows[1])
	assert.Equal(t, "A1", rows[2][2])

	typ, err := f.GetCellType("Flags", "D2")
	require.NoError(t, err)
	assert.Equal(t, excelize.CellTypeBool, typ)
	typ, err = f.GetCellType("Flags", "C2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeNumber, typ, "leading zeros keep the value as text")
}

func TestWrite_DispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	ds := dataset.New([]string{"k"}, [][]string{{"1"}})

	require.NoError(t, Write(filepath.Join(dir, "out.XLSX"), ds, WriteOptions{}))
	require.NoError(t, Write(filepath.Join(dir, "out.csv"), ds, WriteOptions{}))

	err := Write(filepath.Join(dir, "out.json"), ds, WriteOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsConfig(err))
	_, statErr := os.Stat(filepath.Join(dir, "out.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		cell   string
		asBool bool
		want   interface{}
	}{
		{"TRUE", true, true},
		{"FALSE", true, false},
		{"TRUE", false, "TRUE"},
		{"42", false, float64(42)},
		{"3.25", false, 3.25},
		{"007", false, "007"},
		{"1e3", false, "1e3"},
		{"", false, nil},
		{"text", true, "text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cellValue(tt.cell, tt.asBool), "cell %q", tt.cell)
	}
}

func TestOpenSource(t *testing.T) {
	src, err := OpenSource(context.Background(), "/rules/conditions.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "/rules/conditions.xlsx", src.Location())

	_, err = OpenSource(context.Background(), "/rules/conditions.txt")
	assert.True(t, apperrors.IsConfig(err))

	_, err = OpenSource(context.Background(), SheetsScheme)
	assert.True(t, apperrors.IsConfig(err))
}
