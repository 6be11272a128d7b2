// Package shared holds helpers used across the flagger packages that belong to
// no single layer.
//
// The testutil subpackage provides:
//
//	- BufferedSlogHandler, a slog.Handler that captures records for assertions
//	- workbook fixtures written with excelize
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, handler := testutil.NewTestLogger(t)
//	    testutil.WriteWorkbook(t, path, testutil.FixtureSheet{Name: "Sheet1", Rows: rows})
//	    // ...
//	    testutil.AssertNoErrors(t, handler)
//	}
package shared
