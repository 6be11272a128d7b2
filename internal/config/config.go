package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. FLAG_LOGGING_LEVEL.
const EnvPrefix = "FLAG"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Cleanup   CleanupConfig   `yaml:"cleanup" envconfig:"CLEANUP"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Google    GoogleConfig    `yaml:"google" envconfig:"GOOGLE"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RunTimeout      time.Duration   `yaml:"run_timeout" envconfig:"RUN_TIMEOUT"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level" envconfig:"LEVEL"`
	Output    string `yaml:"output" envconfig:"OUTPUT"`
	FilePath  string `yaml:"file_path" envconfig:"FILE_PATH"`
	AddSource bool   `yaml:"add_source" envconfig:"ADD_SOURCE"`
}

// PathsConfig contains file system paths. Relative paths resolve against BaseDir,
// which defaults to the working directory.
type PathsConfig struct {
	BaseDir      string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DownloadsDir string `yaml:"downloads_dir" envconfig:"DOWNLOADS_DIR"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
	SettingsFile string `yaml:"settings_file" envconfig:"SETTINGS_FILE"`
}

// CleanupConfig controls removal of stale downloads before a run.
type CleanupConfig struct {
	Enabled    bool `yaml:"enabled" envconfig:"ENABLED"`
	MaxAgeDays int  `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS"`
}

// MaxAge returns the cleanup threshold as a duration.
func (c CleanupConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	// MetricsTextfile, when set, receives a Prometheus text dump after each CLI run.
	MetricsTextfile string `yaml:"metrics_textfile" envconfig:"METRICS_TEXTFILE"`
}

// GoogleConfig holds credentials for rules stored in Google Sheets.
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// Load builds the configuration from defaults, then the YAML file at path,
// then FLAG_* environment variables. An empty path searches the usual
// locations; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields without a matching variable keep their file or default value
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolvePaths makes every configured path absolute against BaseDir
func (c *Config) resolvePaths() error {
	base := c.Paths.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return err
	}
	c.Paths.BaseDir = base

	c.Paths.DownloadsDir = resolve(base, c.Paths.DownloadsDir)
	c.Paths.LogsDir = resolve(base, c.Paths.LogsDir)
	c.Paths.SettingsFile = resolve(base, c.Paths.SettingsFile)
	c.Logging.FilePath = resolve(base, c.Logging.FilePath)
	if c.Telemetry.MetricsTextfile != "" {
		c.Telemetry.MetricsTextfile = resolve(base, c.Telemetry.MetricsTextfile)
	}
	if c.Google.CredentialsFile != "" {
		c.Google.CredentialsFile = resolve(base, c.Google.CredentialsFile)
	}
	return nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RPS <= 0 || c.Server.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}

	switch c.Logging.Output {
	case LogOutputConsole, LogOutputFile, LogOutputBoth:
	default:
		return fmt.Errorf("invalid log output: %q", c.Logging.Output)
	}

	if c.Logging.Output != LogOutputConsole && c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Paths.BaseDir, DefaultLogFile)
	}

	if c.Cleanup.Enabled && c.Cleanup.MaxAgeDays <= 0 {
		return fmt.Errorf("cleanup max age must be at least one day, got %d", c.Cleanup.MaxAgeDays)
	}

	switch c.Telemetry.TraceExporter {
	case TraceExporterStdout, TraceExporterNone:
	default:
		return fmt.Errorf("invalid trace exporter: %q", c.Telemetry.TraceExporter)
	}

	switch c.Telemetry.MetricExporter {
	case MetricExporterPrometheus, MetricExporterNone:
	default:
		return fmt.Errorf("invalid metric exporter: %q", c.Telemetry.MetricExporter)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		DefaultConfigFile,
		filepath.Join("configs", DefaultConfigFile),
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    DefaultRunTimeout + 15*time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RunTimeout:      DefaultRunTimeout,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Output:   LogOutputBoth,
			FilePath: DefaultLogFile,
		},
		Paths: PathsConfig{
			DownloadsDir: DefaultDownloadsDir,
			LogsDir:      DefaultLogsDir,
			SettingsFile: DefaultSettingsFile,
		},
		Cleanup: CleanupConfig{
			Enabled:    false,
			MaxAgeDays: DefaultCleanupMaxAgeDays,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "flagger",
			TraceExporter:  TraceExporterNone,
			MetricExporter: MetricExporterPrometheus,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  WebSocketReadBufferSize,
			WriteBufferSize: WebSocketWriteBufferSize,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
		},
	}
}
