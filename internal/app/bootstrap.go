package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/api/option"

	"flagcli/internal/config"
	"flagcli/internal/files"
	"flagcli/internal/infrastructure"
	"flagcli/internal/pipeline"
)

// Foundation is what every entry point needs before doing work: the loaded
// configuration, the logger and the telemetry providers.
type Foundation struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	logCloser io.Closer
}

// Bootstrap loads the configuration at configPath (empty searches the default
// locations), then creates the logger and the OpenTelemetry providers.
func Bootstrap(configPath string) (*Foundation, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closer, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	otelCfg := infrastructure.OTelConfigFrom(cfg.Telemetry)
	otelCfg.ServiceVersion = config.AppVersion
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	dirs := files.NewManager(logger)
	for _, dir := range []string{cfg.Paths.DownloadsDir, cfg.Paths.LogsDir} {
		if err := dirs.EnsureDirectory(dir); err != nil {
			providers.Shutdown(context.Background())
			closer.Close()
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	logger.Info("Configuration loaded",
		slog.String("version", config.AppVersion),
		slog.String("base_dir", cfg.Paths.BaseDir),
		slog.String("downloads_dir", cfg.Paths.DownloadsDir),
		slog.String("settings_file", cfg.Paths.SettingsFile),
		slog.String("log_level", cfg.Logging.Level))

	return &Foundation{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		logCloser:     closer,
	}, nil
}

// Close flushes telemetry and closes the log file
func (f *Foundation) Close(ctx context.Context) error {
	var firstErr error
	if f.OTelProviders != nil {
		if err := f.OTelProviders.Shutdown(ctx); err != nil {
			f.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
			firstErr = err
		}
	}
	if f.logCloser != nil {
		if err := f.logCloser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SourceOptions returns the Google API client options for sheets:// rules.
// Without a credentials file the client falls back to application default
// credentials.
func SourceOptions(cfg config.GoogleConfig) []option.ClientOption {
	if cfg.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
}

// NewRunner wires a pipeline runner to the foundation's logger, tracer and
// metrics. events may be nil.
func NewRunner(f *Foundation, events pipeline.EventSink) (*pipeline.Runner, *infrastructure.PipelineMetrics, error) {
	metrics, err := infrastructure.NewPipelineMetrics(f.OTelProviders.Meter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	runner := pipeline.NewRunner(pipeline.ExecContext{
		Logger:  f.Logger,
		Tracer:  f.OTelProviders.Tracer,
		Metrics: metrics,
		Events:  events,
	}, pipeline.Options{
		Cleanup:       f.Config.Cleanup,
		DownloadsDir:  f.Config.Paths.DownloadsDir,
		SourceOptions: SourceOptions(f.Config.Google),
	})
	return runner, metrics, nil
}
