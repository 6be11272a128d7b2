// Package files provides file system discovery and housekeeping for flagging
// runs.
//
// Discovery finds input workbooks and picks the newest one. Manager removes
// stale downloads before a run.
//
// Example usage:
//
//	discovery := files.NewDiscovery(cfg.Paths.BaseDir)
//	input, err := discovery.FindLatestExcelFile(job.FileDir)
//
//	manager := files.NewManager(logger)
//	deleted, err := manager.DeleteOlderThan(cfg.Paths.DownloadsDir, cfg.Cleanup.MaxAge())
package files
