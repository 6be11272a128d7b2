// Package workbook is the spreadsheet I/O layer: it loads raw sheet rows from .xlsx files
// (excelize) or Google spreadsheets (Sheets API v4) and writes finished datasets back out as
// .xlsx or CSV.
//
// Cells are read as their display text. Interpretation of the rows (headers, rule columns)
// belongs to the dataset and rules packages.
//
//	rows, err := workbook.ReadSheetRows("input/latest.xlsx")
//	src, err := workbook.OpenSource(ctx, "sheets://1AbC...", option.WithCredentialsFile(path))
//	wb, err := src.Load(ctx)
//	err = workbook.Write("out/flags.xlsx", merged, workbook.WriteOptions{BoolColumns: indicators})
package workbook
