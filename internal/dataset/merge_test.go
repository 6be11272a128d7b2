package dataset

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "flagcli/internal/errors"
)

// annotated builds a per-rule-set frame: shared base columns plus one indicator.
func annotated(ruleSet string, keys ...string) Dataset {
	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, "desc " + k, FormatBool(i%2 == 0)}
	}
	return New([]string{"k", "desc", ruleSet + " Indicator"}, rows)
}

func TestMergeAll_InnerJoin(t *testing.T) {
	a := annotated("A", "1", "2", "3")
	b := annotated("B", "2", "3", "4")

	merged, err := MergeAll([]Dataset{a, b}, []string{"k"})
	require.NoError(t, err)

	keys, _ := merged.Column("k")
	assert.Equal(t, []string{"2", "3"}, keys)
	assert.Equal(t, []string{"k", "desc", "A Indicator", "B Indicator"}, merged.Columns)
	assert.Equal(t, []string{"2", "desc 2", "FALSE", "TRUE"}, merged.Rows[0])
}

func TestMergeAll_ColumnDedupIdempotence(t *testing.T) {
	frames := []Dataset{
		annotated("A", "1", "2"),
		annotated("B", "1", "2"),
		annotated("C", "2", "1"),
		annotated("D", "1", "2"),
	}

	merged, err := MergeAll(frames, []string{"k"})
	require.NoError(t, err)

	for _, c := range merged.Columns {
		assert.False(t, strings.HasSuffix(c, DuplicateSuffix), "column %q survived pruning", c)
	}
	assert.Equal(t, []string{"k", "desc", "A Indicator", "B Indicator", "C Indicator", "D Indicator"}, merged.Columns)
	assert.Equal(t, 2, merged.Len())
}

func TestMergeAll_RowCountBound(t *testing.T) {
	frames := []Dataset{
		annotated("A", "1", "2", "3", "4", "5"),
		annotated("B", "2", "4", "6"),
		annotated("C", "4", "2", "5", "9"),
	}

	merged, err := MergeAll(frames, []string{"k"})
	require.NoError(t, err)

	minRows := frames[0].Len()
	for _, f := range frames {
		if f.Len() < minRows {
			minRows = f.Len()
		}
	}
	assert.LessOrEqual(t, merged.Len(), minRows)
	keys, _ := merged.Column("k")
	assert.Equal(t, []string{"2", "4"}, keys, "left row order is kept")
}

func TestMergeAll_SingleAndEmpty(t *testing.T) {
	only := annotated("A", "1", "2")
	merged, err := MergeAll([]Dataset{only}, []string{"k"})
	require.NoError(t, err)
	assert.Equal(t, only, merged)

	_, err = MergeAll(nil, []string{"k"})
	assert.ErrorIs(t, err, ErrNothingToMerge)
}

func TestMergeAll_SingleFrameKeyRules(t *testing.T) {
	tests := []struct {
		name  string
		frame Dataset
		keys  []string
	}{
		{"repeated key", annotated("A", "1", "1", "2"), []string{"k"}},
		{"key not a column", annotated("A", "1"), []string{"missing"}},
		{"no keys", annotated("A", "1"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MergeAll([]Dataset{tt.frame}, tt.keys)
			require.Error(t, err)
			assert.True(t, apperrors.IsConfig(err))
		})
	}

	_, err := MergeAll([]Dataset{annotated("A", "1", "1")}, []string{"k"})
	assert.Contains(t, err.Error(), "unique key values repeat")
}

func TestMergeAll_CompositeKey(t *testing.T) {
	a := New([]string{"acct", "branch", "A Indicator"}, [][]string{
		{"1", "east", "TRUE"},
		{"1", "west", "FALSE"},
	})
	b := New([]string{"acct", "branch", "B Indicator"}, [][]string{
		{"1", "west", "TRUE"},
		{"2", "east", "TRUE"},
	})

	merged, err := MergeAll([]Dataset{a, b}, []string{"acct", "branch"})
	require.NoError(t, err)
	require.Equal(t, 1, merged.Len())
	assert.Equal(t, []string{"1", "west", "FALSE", "TRUE"}, merged.Rows[0])
}

func TestMergeAll_DuplicateKeysRejected(t *testing.T) {
	a := annotated("A", "1", "1", "2")
	b := annotated("B", "1", "2")

	_, err := MergeAll([]Dataset{a, b}, []string{"k"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConfig(err))

	_, err = MergeAll([]Dataset{b, a}, []string{"k"})
	assert.True(t, apperrors.IsConfig(err), "duplicates on the right side are rejected too")
}

func TestJoin_Errors(t *testing.T) {
	a := annotated("A", "1")
	b := annotated("B", "1")

	_, err := Join(a, b, nil, DuplicateSuffix)
	assert.True(t, apperrors.IsConfig(err))

	_, err = Join(a, b, []string{"nope"}, DuplicateSuffix)
	assert.True(t, apperrors.IsConfig(err))
}

func TestJoin_SuffixesUntilUnique(t *testing.T) {
	left := New([]string{"k", "desc", "desc" + DuplicateSuffix}, [][]string{{"1", "l", "l2"}})
	right := New([]string{"k", "desc"}, [][]string{{"1", "r"}})

	joined, err := Join(left, right, []string{"k"}, DuplicateSuffix)
	require.NoError(t, err)
	assert.Equal(t, []string{"k", "desc", "desc_duplicate", "desc_duplicate_duplicate"}, joined.Columns)

	pruned := PruneSuffixed(joined, DuplicateSuffix)
	assert.Equal(t, []string{"k", "desc"}, pruned.Columns)
	assert.Equal(t, [][]string{{"1", "l"}}, pruned.Rows)
}

func TestPruneSuffixed_NoMatch(t *testing.T) {
	ds := annotated("A", "1")
	assert.Equal(t, ds, PruneSuffixed(ds, DuplicateSuffix))
}

func BenchmarkMergeAll(b *testing.B) {
	keys := make([]string, 5000)
	for i := range keys {
		keys[i] = fmt.Sprintf("%d", i)
	}
	frames := []Dataset{annotated("A", keys...), annotated("B", keys...), annotated("C", keys...)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := MergeAll(frames, []string{"k"}); err != nil {
			b.Fatal(err)
		}
	}
}
