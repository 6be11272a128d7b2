package workbook

import (
	"context"
	"path/filepath"
	"strings"

	"google.golang.org/api/option"

	apperrors "flagcli/internal/errors"
)

// SheetsScheme prefixes a rules location that names a Google spreadsheet id.
const SheetsScheme = "sheets://"

// Sheet holds the display text of one sheet's cells, row by row.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook is an ordered list of sheets, in the order the source defines them.
type Workbook struct {
	Sheets []Sheet
}

// SheetNames returns the sheet names in workbook order.
func (w Workbook) SheetNames() []string {
	names := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		names[i] = s.Name
	}
	return names
}

// Source supplies a rules workbook.
type Source interface {
	Load(ctx context.Context) (Workbook, error)
	Location() string
}

// FileSource reads every sheet of a local .xlsx file.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(_ context.Context) (Workbook, error) {
	return ReadWorkbook(s.Path)
}

// Location implements Source.
func (s FileSource) Location() string { return s.Path }

// OpenSource picks a Source for location: "sheets://<id>" opens a Google
// spreadsheet with the given client options, anything else is a local file.
func OpenSource(ctx context.Context, location string, opts ...option.ClientOption) (Source, error) {
	if id, ok := strings.CutPrefix(location, SheetsScheme); ok {
		if id == "" {
			return nil, apperrors.NewConfigError("spreadsheet id is empty", nil).
				WithContext("conditions_path", location)
		}
		return NewSheetsSource(ctx, id, opts...)
	}
	ext := strings.ToLower(filepath.Ext(location))
	if ext != ".xlsx" && ext != ".xlsm" {
		return nil, apperrors.NewConfigError("rules workbook must be an .xlsx file", nil).
			WithContext("conditions_path", location)
	}
	return FileSource{Path: location}, nil
}
