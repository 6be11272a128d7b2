// Package pipeline runs a flagging job end to end.
//
// A run loads the newest workbook from the job's input directory, normalizes
// its header, applies the product filters, evaluates every rule set of the
// rules workbook into its own indicator column, merges the annotated copies
// on the job's unique keys, optionally drops duplicate rows and writes the
// result as .xlsx or .csv.
//
// Each stage runs inside an OpenTelemetry span, is timed into
// infrastructure.PipelineMetrics and is reported to an EventSink so that
// observers such as the websocket hub can follow progress. A rules workbook
// without sheets ends the run with OutcomeNothingToWrite and no output file.
package pipeline
