package workbook

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	apperrors "flagcli/internal/errors"
)

// SheetsSource reads a rules workbook from a Google spreadsheet, one tab per
// rule set.
type SheetsSource struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewSheetsSource creates a Sheets API client for spreadsheetID.
func NewSheetsSource(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*SheetsSource, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewIOError("failed to create Google Sheets service", err)
	}
	return &SheetsSource{service: svc, spreadsheetID: spreadsheetID}, nil
}

// Location implements Source.
func (s *SheetsSource) Location() string { return SheetsScheme + s.spreadsheetID }

// Load implements Source. Tabs are returned in spreadsheet order.
func (s *SheetsSource) Load(ctx context.Context) (Workbook, error) {
	doc, err := s.service.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return Workbook{}, apperrors.NewIOError("failed to fetch spreadsheet", err).
			WithContext("spreadsheet_id", s.spreadsheetID)
	}

	var wb Workbook
	for _, sh := range doc.Sheets {
		if sh.Properties == nil {
			continue
		}
		title := sh.Properties.Title
		vr, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, quoteRange(title)).Context(ctx).Do()
		if err != nil {
			return Workbook{}, apperrors.NewIOError("failed to fetch sheet values", err).
				WithContext("spreadsheet_id", s.spreadsheetID).
				WithContext("sheet", title)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: title, Rows: textRows(vr.Values)})
	}
	return wb, nil
}

// quoteRange turns a tab title into an A1 range covering the whole tab.
func quoteRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func textRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, v := range values {
		row := make([]string, len(v))
		for j, cell := range v {
			if cell != nil {
				row[j] = fmt.Sprint(cell)
			}
		}
		rows[i] = row
	}
	return rows
}
