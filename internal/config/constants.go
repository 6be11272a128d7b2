package config

import "time"

// Application constants
const (
	AppName    = "Flagger"
	AppVersion = "1.0.0"

	// Files and directories, relative to the base directory
	DefaultConfigFile   = "flagger.yaml"
	DefaultDownloadsDir = "downloads"
	DefaultLogsDir      = "logs"
	DefaultLogFile      = "logs/automation.log"
	DefaultSettingsFile = "user_interface_settings.json"

	DefaultLogLevel = "info"

	// Cleanup removes downloads older than this many days
	DefaultCleanupMaxAgeDays = 1

	DefaultRunTimeout = 30 * time.Minute

	// Rate limiting
	DefaultRateLimit = 10 // requests per second
	DefaultBurstSize = 20

	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024
	WebSocketPingPeriod      = 30 * time.Second
	WebSocketPongWait        = 60 * time.Second

	// Telemetry exporters
	TraceExporterStdout      = "stdout"
	TraceExporterNone        = "none"
	MetricExporterPrometheus = "prometheus"
	MetricExporterNone       = "none"

	// Log outputs
	LogOutputConsole = "console"
	LogOutputFile    = "file"
	LogOutputBoth    = "both"
)

// HTTP endpoints
const (
	APIBasePath       = "/api"
	RunsEndpoint      = "/api/runs"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)
