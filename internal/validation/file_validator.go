package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"flagcli/internal/config"
	apperrors "flagcli/internal/errors"
	"flagcli/internal/workbook"
)

// FileValidator checks the file system side of a job before any work is done
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// Preflight checks that the job's input directory exists, that a local rules
// workbook is a readable Excel file, and that the output directory is
// writable. Rules in Google Sheets are only checked when loaded.
func (v *FileValidator) Preflight(job config.Job) error {
	if err := v.ValidateInputDirectory(job.FileDir); err != nil {
		return err
	}
	if !strings.HasPrefix(job.ConditionsPath, workbook.SheetsScheme) {
		if err := v.ValidateExcelFile(job.ConditionsPath); err != nil {
			return err
		}
	}
	return v.ValidateOutputDirectory(filepath.Dir(job.OutputPath))
}

// ValidateInputDirectory validates that the input directory exists
func (v *FileValidator) ValidateInputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("Input directory does not exist",
			slog.String("directory", dir))
		return apperrors.NewIOError(fmt.Sprintf("input directory %s does not exist", dir), err)
	}
	if err != nil {
		return apperrors.NewIOError(fmt.Sprintf("failed to stat directory %s", dir), err)
	}
	if !info.IsDir() {
		v.logger.Error("Input path is not a directory",
			slog.String("path", dir))
		return apperrors.NewIOError(fmt.Sprintf("%s is not a directory", dir), nil)
	}
	return nil
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewIOError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	// Verify it's writable by creating a test file
	file, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewIOError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	name := file.Name()
	file.Close()
	os.Remove(name)

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return apperrors.NewIOError(fmt.Sprintf("file %s does not exist", path), err)
	}
	if err != nil {
		return apperrors.NewIOError(fmt.Sprintf("failed to stat file %s", path), err)
	}
	if info.IsDir() {
		return apperrors.NewIOError(fmt.Sprintf("%s is a directory, not a file", path), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewIOError(fmt.Sprintf("file %s is not readable", path), err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateExcelFile checks that path is a readable .xlsx workbook and not an
// Excel lock file
func (v *FileValidator) ValidateExcelFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" && ext != ".xlsm" {
		return apperrors.NewConfigError(fmt.Sprintf("file %s is not an Excel workbook (extension: %s)", path, ext), nil)
	}
	if strings.HasPrefix(filepath.Base(path), "~$") {
		return apperrors.NewConfigError(fmt.Sprintf("file %s is a temporary Excel file", path), nil)
	}
	return v.ValidateFile(path)
}
