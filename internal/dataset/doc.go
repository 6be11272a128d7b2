// Package dataset holds the in-memory table model and the table-level steps of
// a flagging run.
//
// # Steps
//
//	FromRows / NormalizeHeader   raw sheet rows → Dataset, unnamed columns forward-filled
//	Filter                       keep rows whose columns contain every configured substring
//	MergeAll (Join, PruneSuffixed) inner join of per-rule-set datasets on the unique keys
//	DropDuplicates               keep the first row per subset key
//
// Every step returns a new Dataset; inputs are never modified.
//
// # Errors
//
// Unknown filter or dedup columns and a header that starts with an unnamed column are
// schema errors. Missing or repeating unique keys are configuration errors. Both are
// *errors.AppError values from flagcli/internal/errors.
package dataset
