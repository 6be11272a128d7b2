package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "flagcli/internal/errors"
)

// lockFilePrefix marks the owner files Excel leaves next to open workbooks.
const lockFilePrefix = "~$"

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery provides file discovery operations
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance. Relative directories
// passed to its methods resolve against basePath.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// FindExcelFiles finds the .xlsx and .xlsm workbooks in dir, oldest first.
// Excel lock files are skipped.
func (d *Discovery) FindExcelFiles(dir string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasPrefix(name, lockFilePrefix) || !isWorkbook(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.Before(files[j].ModTime)
	})

	return files, nil
}

// FindLatestExcelFile returns the most recently modified workbook in dir. An
// unreadable or empty directory is an IO error.
func (d *Discovery) FindLatestExcelFile(dir string) (FileInfo, error) {
	files, err := d.FindExcelFiles(dir)
	if err != nil {
		return FileInfo{}, apperrors.NewIOError("failed to list input directory", err).WithContext("dir", dir)
	}
	latest, ok := GetLatestFile(files)
	if !ok {
		return FileInfo{}, apperrors.NewIOError("no .xlsx file found", nil).WithContext("dir", d.resolve(dir))
	}
	return latest, nil
}

// GetLatestFile returns the most recently modified file from a list. Ties go
// to the later name so the choice is stable.
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}

	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) ||
			(file.ModTime.Equal(latest.ModTime) && file.Name > latest.Name) {
			latest = file
		}
	}

	return latest, true
}

func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) || d.basePath == "" {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}

func isWorkbook(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}
