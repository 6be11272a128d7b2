// Package rules loads classification rule sets from a rules workbook and
// evaluates them against dataset rows.
//
// Each sheet of the workbook is one rule set. Its header row may contain the
// columns Identifiers, Exclude and "Fields To Be Searched"; other columns are
// ignored. A row is flagged when one of its search fields contains an
// identifier and none contains an exclude keyword, ignoring case.
package rules
