package dataset

import (
	stderrors "errors"
	"strings"

	apperrors "flagcli/internal/errors"
)

// DuplicateSuffix marks a right-hand column whose name collided during a join.
const DuplicateSuffix = "_duplicate"

// ErrNothingToMerge is returned by MergeAll when it is given no datasets.
var ErrNothingToMerge = stderrors.New("no datasets to merge")

// keySep joins key cells; the unit separator does not occur in sheet text.
const keySep = "\x1f"

// MergeAll folds frames left to right with an inner Join on keys, then drops
// every column the joins had to rename. A single frame is returned unchanged
// once its keys are known to be unique, so the key rules do not depend on how
// many frames there are.
func MergeAll(frames []Dataset, keys []string) (Dataset, error) {
	switch len(frames) {
	case 0:
		return Dataset{}, ErrNothingToMerge
	case 1:
		if err := checkKeys(frames[0], keys); err != nil {
			return Dataset{}, err
		}
		return frames[0], nil
	}

	merged := frames[0]
	for i, right := range frames[1:] {
		var err error
		merged, err = Join(merged, right, keys, DuplicateSuffix)
		if err != nil {
			var appErr *apperrors.AppError
			if stderrors.As(err, &appErr) {
				appErr.WithContext("frame", i+1)
			}
			return Dataset{}, err
		}
	}
	return PruneSuffixed(merged, DuplicateSuffix), nil
}

func checkKeys(ds Dataset, keys []string) error {
	if len(keys) == 0 {
		return apperrors.NewConfigError("unique keys are required to merge datasets", nil)
	}
	idx, err := ds.Indices(keys)
	if err != nil {
		return apperrors.NewConfigError("unique keys are not columns of the dataset", err)
	}
	_, err = keyIndex(ds, idx)
	return err
}

// Join is an inner join of left and right on keys. The result keeps left's
// row order and columns, followed by right's non-key columns; a right column
// whose name is already taken gets suffix appended until it is unique. Key
// combinations must be unique within each side.
func Join(left, right Dataset, keys []string, suffix string) (Dataset, error) {
	if len(keys) == 0 {
		return Dataset{}, apperrors.NewConfigError("unique keys are required to merge datasets", nil)
	}
	lIdx, err := left.Indices(keys)
	if err != nil {
		return Dataset{}, apperrors.NewConfigError("unique keys are not columns of the dataset", err)
	}
	rIdx, err := right.Indices(keys)
	if err != nil {
		return Dataset{}, apperrors.NewConfigError("unique keys are not columns of the dataset", err)
	}
	if _, err := keyIndex(left, lIdx); err != nil {
		return Dataset{}, err
	}
	rKeys, err := keyIndex(right, rIdx)
	if err != nil {
		return Dataset{}, err
	}

	isKey := make(map[int]bool, len(rIdx))
	for _, i := range rIdx {
		isKey[i] = true
	}
	taken := make(map[string]bool, len(left.Columns)+len(right.Columns))
	columns := append([]string(nil), left.Columns...)
	for _, c := range columns {
		taken[c] = true
	}
	var carry []int
	for i, c := range right.Columns {
		if isKey[i] {
			continue
		}
		name := c
		for taken[name] {
			name += suffix
		}
		taken[name] = true
		columns = append(columns, name)
		carry = append(carry, i)
	}

	out := Dataset{Columns: columns}
	for _, lrow := range left.Rows {
		r, ok := rKeys[rowKey(lrow, lIdx)]
		if !ok {
			continue
		}
		rrow := right.Rows[r]
		row := make([]string, 0, len(columns))
		row = append(row, lrow...)
		for _, i := range carry {
			row = append(row, rrow[i])
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// PruneSuffixed drops every column whose name ends with suffix.
func PruneSuffixed(ds Dataset, suffix string) Dataset {
	var keepIdx []int
	for i, c := range ds.Columns {
		if !strings.HasSuffix(c, suffix) {
			keepIdx = append(keepIdx, i)
		}
	}
	if len(keepIdx) == len(ds.Columns) {
		return ds
	}

	out := Dataset{Columns: make([]string, len(keepIdx)), Rows: make([][]string, len(ds.Rows))}
	for j, i := range keepIdx {
		out.Columns[j] = ds.Columns[i]
	}
	for r, row := range ds.Rows {
		nr := make([]string, len(keepIdx))
		for j, i := range keepIdx {
			nr[j] = row[i]
		}
		out.Rows[r] = nr
	}
	return out
}

// keyIndex maps each key combination to its row, failing on the first repeat.
func keyIndex(ds Dataset, idx []int) (map[string]int, error) {
	m := make(map[string]int, len(ds.Rows))
	for r, row := range ds.Rows {
		k := rowKey(row, idx)
		if first, dup := m[k]; dup {
			return nil, apperrors.NewConfigError("unique key values repeat within a dataset", nil).
				WithContext("key", strings.ReplaceAll(k, keySep, ",")).
				WithContext("rows", []int{first, r})
		}
		m[k] = r
	}
	return m, nil
}

func rowKey(row []string, idx []int) string {
	parts := make([]string, len(idx))
	for i, c := range idx {
		parts[i] = row[c]
	}
	return strings.Join(parts, keySep)
}
