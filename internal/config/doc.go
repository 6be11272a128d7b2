// Package config provides configuration loading for the flagger tools and the
// job definition of a flagging run.
//
// # Configuration Sources
//
// Configuration is assembled in order of increasing precedence:
//
//	1. Default values
//	2. flagger.yaml (or configs/flagger.yaml, or an explicit path)
//	3. Environment variables
//
// Environment variables use the FLAG_ prefix and the section name:
//
//	FLAG_LOGGING_LEVEL=debug
//	FLAG_SERVER_PORT=9090
//	FLAG_CLEANUP_ENABLED=true
//	FLAG_TELEMETRY_TRACE_EXPORTER=stdout
//
// Relative paths are resolved against paths.base_dir, which defaults to the
// working directory.
//
// # Jobs
//
// A Job names the input directory, the rules workbook, the output file and the
// merge options. Jobs load from YAML or JSON and are validated with
// go-playground/validator:
//
//	job, err := config.LoadJob("job.yaml")
//
// The last-used paths are kept in a settings file (user_interface_settings.json)
// and fill in whatever a job leaves empty:
//
//	saved, _ := config.LoadSettings(cfg.Paths.SettingsFile)
//	merged := job.Merge(saved.Job())
package config
