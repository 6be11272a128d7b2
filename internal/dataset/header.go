package dataset

import (
	"strings"

	apperrors "flagcli/internal/errors"
)

// DescSuffix is appended to the previous column's name for an unnamed column.
const DescSuffix = " Desc"

// NormalizeHeader resolves the column names of a raw, comma-delimited header.
// An empty segment describes the column before it and is named after it:
// "A,,B," resolves to [A, A Desc, B, B Desc].
func NormalizeHeader(raw string) ([]string, error) {
	segments := strings.Split(raw, ",")
	names := make([]string, len(segments))
	prev := ""
	for i, seg := range segments {
		if seg == "" {
			if prev == "" {
				return nil, apperrors.NewSchemaError("header begins with an unnamed column", nil).
					WithContext("header", raw)
			}
			names[i] = prev + DescSuffix
			continue
		}
		names[i] = seg
		prev = seg
	}
	return names, nil
}

// FromRows builds the working dataset from raw sheet rows. The first cell of
// rows[0] holds the delimited header; skip rows directly below the header are
// discarded before data begins. Rows that are entirely blank are dropped and
// every row is padded or truncated to the header width.
func FromRows(rows [][]string, skip int) (Dataset, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Dataset{}, apperrors.NewSchemaError("sheet has no header row", nil)
	}
	columns, err := NormalizeHeader(rows[0][0])
	if err != nil {
		return Dataset{}, err
	}
	if skip < 0 {
		return Dataset{}, apperrors.NewConfigError("rows to skip must not be negative", nil).
			WithContext("num_rows_skip", skip)
	}

	ds := Dataset{Columns: columns}
	first := 1 + skip
	if first >= len(rows) {
		return ds, nil
	}
	for _, row := range rows[first:] {
		if blank(row) {
			continue
		}
		ds.Rows = append(ds.Rows, align(row, len(columns)))
	}
	return ds, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
