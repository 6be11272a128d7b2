package dataset

import (
	"sort"
	"strings"

	apperrors "flagcli/internal/errors"
)

// ColumnFilter keeps rows whose Column value contains every string in Contains.
type ColumnFilter struct {
	Column   string
	Contains []string
}

// Filters is applied in order; a row must pass all of them.
type Filters []ColumnFilter

// FiltersFromMap converts a column → substrings mapping into Filters ordered by
// column name so that runs are reproducible.
func FiltersFromMap(m map[string][]string) Filters {
	if len(m) == 0 {
		return nil
	}
	cols := make([]string, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	out := make(Filters, 0, len(cols))
	for _, c := range cols {
		out = append(out, ColumnFilter{Column: c, Contains: m[c]})
	}
	return out
}

// Filter returns the rows of ds that pass every filter. Matching is
// case-sensitive substring containment, unlike indicator matching.
func Filter(ds Dataset, filters Filters) (Dataset, error) {
	if len(filters) == 0 {
		return ds, nil
	}

	idx := make([]int, len(filters))
	for i, f := range filters {
		idx[i] = ds.ColumnIndex(f.Column)
		if idx[i] < 0 {
			return Dataset{}, apperrors.NewSchemaError("filter references an unknown column", nil).
				WithContext("column", f.Column)
		}
	}

	out := Dataset{Columns: ds.Columns}
	for _, row := range ds.Rows {
		if keep(row, filters, idx) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func keep(row []string, filters Filters, idx []int) bool {
	for i, f := range filters {
		cell := row[idx[i]]
		for _, s := range f.Contains {
			if !strings.Contains(cell, s) {
				return false
			}
		}
	}
	return true
}
