package dataset

import (
	"fmt"
	"strings"
)

// Dataset is an in-memory table: an ordered column schema and rows aligned to it.
// Cell values are the cell's display text; an empty cell is "".
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// RowView is a read-only name→value view over one row of a Dataset.
type RowView struct {
	index map[string]int
	cells []string
}

// Get returns the value of the named column and whether the column exists.
func (r RowView) Get(column string) (string, bool) {
	i, ok := r.index[column]
	if !ok {
		return "", false
	}
	return r.cells[i], true
}

// New creates a dataset, copying columns and rows so later changes to the
// arguments are not visible through it.
func New(columns []string, rows [][]string) Dataset {
	ds := Dataset{Columns: append([]string(nil), columns...)}
	ds.Rows = make([][]string, len(rows))
	for i, row := range rows {
		ds.Rows[i] = align(row, len(columns))
	}
	return ds
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (d Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the dataset has the named column.
func (d Dataset) HasColumn(name string) bool {
	return d.ColumnIndex(name) >= 0
}

// Indices resolves column names to positions. The returned error names every
// missing column.
func (d Dataset) Indices(names []string) ([]int, error) {
	idx := make([]int, len(names))
	var missing []string
	for i, n := range names {
		idx[i] = d.ColumnIndex(n)
		if idx[i] < 0 {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown column(s) %s", quoteAll(missing))
	}
	return idx, nil
}

// Row returns a name→value view of row i.
func (d Dataset) Row(i int) RowView {
	return RowView{index: d.index(), cells: d.Rows[i]}
}

// Views returns a RowView for every row, sharing one column index.
func (d Dataset) Views() []RowView {
	index := d.index()
	views := make([]RowView, len(d.Rows))
	for i, row := range d.Rows {
		views[i] = RowView{index: index, cells: row}
	}
	return views
}

// Column returns every value of the named column in row order.
func (d Dataset) Column(name string) ([]string, bool) {
	i := d.ColumnIndex(name)
	if i < 0 {
		return nil, false
	}
	out := make([]string, len(d.Rows))
	for r, row := range d.Rows {
		out[r] = row[i]
	}
	return out, true
}

// WithColumn returns a new dataset with one column appended. values must have
// one entry per row. The receiver is left untouched.
func (d Dataset) WithColumn(name string, values []string) (Dataset, error) {
	if len(values) != len(d.Rows) {
		return Dataset{}, fmt.Errorf("column %q has %d values for %d rows", name, len(values), len(d.Rows))
	}
	out := Dataset{
		Columns: append(append(make([]string, 0, len(d.Columns)+1), d.Columns...), name),
		Rows:    make([][]string, len(d.Rows)),
	}
	for i, row := range d.Rows {
		nr := make([]string, 0, len(row)+1)
		nr = append(nr, row...)
		out.Rows[i] = append(nr, values[i])
	}
	return out, nil
}

// Head returns at most n rows, for log previews.
func (d Dataset) Head(n int) [][]string {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}

// FormatBool renders an indicator value the way spreadsheets show booleans.
func FormatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (d Dataset) index() map[string]int {
	m := make(map[string]int, len(d.Columns))
	for i := len(d.Columns) - 1; i >= 0; i-- {
		m[d.Columns[i]] = i
	}
	return m
}

// align pads or truncates a row to width cells.
func align(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(q, ", ")
}
