package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "flagcli/internal/errors"
	"flagcli/internal/shared/testutil"
)

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestFindExcelFiles(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		expected []string
	}{
		{
			name:     "only workbooks",
			files:    []string{"a.xlsx", "b.XLSX", "c.xlsm"},
			expected: []string{"a.xlsx", "b.XLSX", "c.xlsm"},
		},
		{
			name:     "mixed file types",
			files:    []string{"report.xlsx", "data.csv", "doc.pdf", "legacy.xls"},
			expected: []string{"report.xlsx"},
		},
		{
			name:     "lock files skipped",
			files:    []string{"~$report.xlsx", "report.xlsx"},
			expected: []string{"report.xlsx"},
		},
		{
			name:     "empty",
			files:    nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			base := time.Now().Add(-time.Hour)
			for i, f := range tt.files {
				touch(t, filepath.Join(dir, f), base.Add(time.Duration(i)*time.Minute))
			}
			require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.xlsx"), 0755))

			found, err := NewDiscovery("").FindExcelFiles(dir)
			require.NoError(t, err)

			var names []string
			for _, f := range found {
				names = append(names, f.Name)
				assert.Equal(t, filepath.Join(dir, f.Name), f.Path)
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestFindLatestExcelFile(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "in")
	now := time.Now()
	touch(t, filepath.Join(dir, "newest.xlsx"), now.Add(-time.Minute))
	touch(t, filepath.Join(dir, "older.xlsx"), now.Add(-time.Hour))
	touch(t, filepath.Join(dir, "newer-but-csv.csv"), now)

	latest, err := NewDiscovery(base).FindLatestExcelFile("in")
	require.NoError(t, err)
	assert.Equal(t, "newest.xlsx", latest.Name)
}

func TestFindLatestExcelFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewDiscovery("").FindLatestExcelFile(dir)
	require.Error(t, err)
	assert.True(t, apperrors.IsIO(err))

	_, err = NewDiscovery("").FindLatestExcelFile(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.True(t, apperrors.IsIO(err))
}

func TestGetLatestFile(t *testing.T) {
	now := time.Now()

	_, ok := GetLatestFile(nil)
	assert.False(t, ok)

	latest, ok := GetLatestFile([]FileInfo{
		{Name: "a", ModTime: now.Add(-time.Hour)},
		{Name: "c", ModTime: now},
		{Name: "b", ModTime: now},
	})
	require.True(t, ok)
	assert.Equal(t, "c", latest.Name, "ties resolve to the later name")
}

func TestManager_DeleteOlderThan(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	m := NewManager(logger)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	dir := t.TempDir()
	stale := filepath.Join(dir, "old.xlsx")
	nested := filepath.Join(dir, "nested", "older.xlsx")
	fresh := filepath.Join(dir, "fresh.xlsx")
	touch(t, stale, now.Add(-25*time.Hour))
	touch(t, nested, now.Add(-72*time.Hour))
	touch(t, fresh, now.Add(-time.Hour))

	deleted, err := m.DeleteOlderThan(dir, 24*time.Hour)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{stale, nested}, deleted)

	assert.FileExists(t, fresh)
	assert.NoFileExists(t, stale)
	assert.NoFileExists(t, nested)
	assert.DirExists(t, filepath.Join(dir, "nested"))
	assert.True(t, handler.ContainsMessage("Deleted stale file"))
}

func TestManager_DeleteOlderThan_MissingDir(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	m := NewManager(logger)

	deleted, err := m.DeleteOlderThan(filepath.Join(t.TempDir(), "nope"), time.Hour)
	assert.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestManager_EnsureDirectory(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	m := NewManager(logger)
	dir := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, m.EnsureDirectory(dir))
	assert.DirExists(t, dir)
	require.NoError(t, m.EnsureDirectory(dir))
}
