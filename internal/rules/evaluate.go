package rules

import (
	"strings"

	"flagcli/internal/dataset"
	apperrors "flagcli/internal/errors"
)

// Evaluate decides the indicator for one row. Search fields are scanned in
// order for an exclude keyword first; any hit makes the row false. Otherwise
// an identifier hit makes it true. Comparison ignores case. A search field
// missing from the row never matches.
func Evaluate(rs RuleSet, row dataset.RowView) bool {
	return newMatcher(rs).match(row)
}

// Annotate returns a copy of ds with rs's indicator column appended, and the
// number of rows flagged true. ds is not modified.
func Annotate(ds dataset.Dataset, rs RuleSet) (dataset.Dataset, int, error) {
	if _, err := ds.Indices(rs.SearchFields); err != nil {
		return dataset.Dataset{}, 0, apperrors.NewConfigError("rule set searches fields the dataset lacks", err).
			WithContext("rule_set", rs.Name)
	}
	if ds.HasColumn(rs.IndicatorColumn()) {
		return dataset.Dataset{}, 0, apperrors.NewConfigError("indicator column already present", nil).
			WithContext("rule_set", rs.Name).
			WithContext("column", rs.IndicatorColumn())
	}

	m := newMatcher(rs)
	values := make([]string, ds.Len())
	hits := 0
	for i, view := range ds.Views() {
		flag := m.match(view)
		if flag {
			hits++
		}
		values[i] = dataset.FormatBool(flag)
	}

	out, err := ds.WithColumn(rs.IndicatorColumn(), values)
	if err != nil {
		return dataset.Dataset{}, 0, err
	}
	return out, hits, nil
}

// matcher holds a rule set with its keywords upper-cased once.
type matcher struct {
	fields      []string
	exclude     []string
	identifiers []string
}

func newMatcher(rs RuleSet) matcher {
	return matcher{
		fields:      rs.SearchFields,
		exclude:     upperAll(rs.Exclude),
		identifiers: upperAll(rs.Identifiers),
	}
}

func (m matcher) match(row dataset.RowView) bool {
	if m.any(row, m.exclude) {
		return false
	}
	return m.any(row, m.identifiers)
}

func (m matcher) any(row dataset.RowView, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	for _, field := range m.fields {
		value, ok := row.Get(field)
		if !ok {
			continue
		}
		value = strings.ToUpper(value)
		for _, kw := range keywords {
			if strings.Contains(value, kw) {
				return true
			}
		}
	}
	return false
}

func upperAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}
