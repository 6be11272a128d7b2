package dataset

import (
	apperrors "flagcli/internal/errors"
)

// DropDuplicates keeps the first row for each distinct combination of the
// subset columns. An empty subset compares whole rows.
func DropDuplicates(ds Dataset, subset []string) (Dataset, error) {
	var idx []int
	if len(subset) == 0 {
		idx = make([]int, len(ds.Columns))
		for i := range idx {
			idx[i] = i
		}
	} else {
		var err error
		idx, err = ds.Indices(subset)
		if err != nil {
			return Dataset{}, apperrors.NewSchemaError("duplicate subset references an unknown column", err)
		}
	}

	seen := make(map[string]struct{}, len(ds.Rows))
	out := Dataset{Columns: ds.Columns}
	for _, row := range ds.Rows {
		k := rowKey(row, idx)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
