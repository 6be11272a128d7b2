package workbook

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"flagcli/internal/dataset"
	apperrors "flagcli/internal/errors"
)

// WriteCSV writes ds to path with the header as the first record.
func WriteCSV(path string, ds dataset.Dataset, opts WriteOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewIOError("failed to create output directory", err).WithContext("path", path)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return apperrors.NewIOError("failed to open output file", err).WithContext("path", path)
	}
	defer file.Close()

	// Excel only detects UTF-8 CSV with a BOM
	if opts.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return apperrors.NewIOError("failed to write BOM", err).WithContext("path", path)
		}
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(ds.Columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range ds.Rows {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewIOError("failed to flush output file", err).WithContext("path", path)
	}
	return file.Sync()
}

// Write saves ds in the format named by path's extension: .csv or .xlsx.
func Write(path string, ds dataset.Dataset, opts WriteOptions) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return WriteCSV(path, ds, opts)
	case ".xlsx", ".xlsm":
		return WriteXLSX(path, ds, opts)
	default:
		return apperrors.NewConfigError("output path must end in .xlsx or .csv", nil).
			WithContext("output_path", path)
	}
}
