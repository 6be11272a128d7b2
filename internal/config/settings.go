package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	apperrors "flagcli/internal/errors"
)

// Settings are the last-used job values, reloaded as defaults on the next run.
type Settings struct {
	FileDir        string   `json:"file_dir"`
	ConditionsPath string   `json:"conditions_path"`
	OutputPath     string   `json:"output_path"`
	UniqueKeys     []string `json:"unique_keys,omitempty"`
}

// SettingsFromJob extracts the remembered fields of a job.
func SettingsFromJob(j Job) Settings {
	return Settings{
		FileDir:        j.FileDir,
		ConditionsPath: j.ConditionsPath,
		OutputPath:     j.OutputPath,
		UniqueKeys:     j.UniqueKeys,
	}
}

// Job returns the settings as a partial job for Job.Merge.
func (s Settings) Job() Job {
	return Job{
		FileDir:        s.FileDir,
		ConditionsPath: s.ConditionsPath,
		OutputPath:     s.OutputPath,
		UniqueKeys:     s.UniqueKeys,
	}
}

// LoadSettings reads the settings file. A missing file yields zero settings.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, apperrors.NewIOError("failed to read settings", err).WithContext("path", path)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, apperrors.NewConfigError("failed to parse settings", err).WithContext("path", path)
	}
	return s, nil
}

// SaveSettings writes s as indented JSON, replacing the file atomically.
func SaveSettings(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewIOError("failed to create settings directory", err).WithContext("path", path)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return apperrors.NewIOError("failed to write settings", err).WithContext("path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return apperrors.NewIOError("failed to replace settings", err).WithContext("path", path)
	}
	return nil
}
