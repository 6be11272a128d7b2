package rules

import (
	"fmt"

	apperrors "flagcli/internal/errors"
	"flagcli/internal/workbook"
)

// Column is a recognized header of a rules sheet.
type Column string

const (
	ColumnIdentifiers  Column = "Identifiers"
	ColumnExclude      Column = "Exclude"
	ColumnSearchFields Column = "Fields To Be Searched"
)

// IndicatorSuffix is appended to a rule set name to form its indicator column.
const IndicatorSuffix = " Indicator"

// ParseColumn maps a header cell to a recognized column.
func ParseColumn(header string) (Column, bool) {
	switch c := Column(header); c {
	case ColumnIdentifiers, ColumnExclude, ColumnSearchFields:
		return c, true
	}
	return "", false
}

// RuleSet is one named classification rule, loaded from one sheet.
type RuleSet struct {
	Name         string
	Identifiers  []string
	Exclude      []string
	SearchFields []string
	// Unrecognized lists header cells that were ignored.
	Unrecognized []string
}

// IndicatorColumn is the name of the column Annotate adds for this rule set.
func (rs RuleSet) IndicatorColumn() string {
	return rs.Name + IndicatorSuffix
}

// Set is an ordered collection of rule sets in sheet order.
type Set struct {
	RuleSets []RuleSet
}

// Len returns the number of rule sets.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.RuleSets)
}

// Names returns the rule set names in order.
func (s *Set) Names() []string {
	names := make([]string, 0, s.Len())
	for _, rs := range s.RuleSets {
		names = append(names, rs.Name)
	}
	return names
}

// IndicatorColumns returns the indicator column names in order.
func (s *Set) IndicatorColumns() []string {
	cols := make([]string, 0, s.Len())
	for _, rs := range s.RuleSets {
		cols = append(cols, rs.IndicatorColumn())
	}
	return cols
}

// Load builds one RuleSet per sheet of wb. The first row of a sheet is its
// header; a recognized column collects the non-empty cells below it. A sheet
// with no rows yields a rule set that never matches.
func Load(wb workbook.Workbook) (*Set, error) {
	set := &Set{RuleSets: make([]RuleSet, 0, len(wb.Sheets))}
	for _, sheet := range wb.Sheets {
		rs, err := parseSheet(sheet)
		if err != nil {
			return nil, err
		}
		set.RuleSets = append(set.RuleSets, rs)
	}
	return set, nil
}

func parseSheet(sheet workbook.Sheet) (RuleSet, error) {
	rs := RuleSet{Name: sheet.Name}
	if len(sheet.Rows) == 0 {
		return rs, nil
	}

	positions := make(map[Column]int)
	for i, cell := range sheet.Rows[0] {
		col, ok := ParseColumn(cell)
		if !ok {
			if cell != "" {
				rs.Unrecognized = append(rs.Unrecognized, cell)
			}
			continue
		}
		if _, dup := positions[col]; dup {
			return RuleSet{}, apperrors.NewConfigError(fmt.Sprintf("column %q appears more than once", col), nil).
				WithContext("rule_set", sheet.Name)
		}
		positions[col] = i
	}

	rs.Identifiers = collect(sheet.Rows[1:], positions, ColumnIdentifiers)
	rs.Exclude = collect(sheet.Rows[1:], positions, ColumnExclude)
	rs.SearchFields = collect(sheet.Rows[1:], positions, ColumnSearchFields)
	return rs, nil
}

func collect(rows [][]string, positions map[Column]int, col Column) []string {
	pos, ok := positions[col]
	if !ok {
		return nil
	}
	var values []string
	for _, row := range rows {
		if pos < len(row) && row[pos] != "" {
			values = append(values, row[pos])
		}
	}
	return values
}
