// Command flagger runs one flagging job: it loads the newest workbook from the
// input directory, evaluates every rule set of the rules workbook against it
// and writes the merged dataset with one indicator column per rule set.
//
// Job parameters come from -job, then individual flags, then the saved
// settings file for anything still empty.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"flagcli/internal/app"
	"flagcli/internal/config"
	apperrors "flagcli/internal/errors"
	"flagcli/internal/infrastructure"
	"flagcli/internal/pipeline"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// options are the parsed command line
type options struct {
	configPath   string
	jobPath      string
	saveSettings bool
	overrides    config.Job
	set          map[string]bool
}

// filterFlag collects repeated -filter Column=sub1,sub2 values
type filterFlag map[string][]string

func (f filterFlag) String() string {
	cols := make([]string, 0, len(f))
	for col := range f {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, col+"="+strings.Join(f[col], ","))
	}
	return strings.Join(parts, " ")
}

func (f filterFlag) Set(value string) error {
	col, subs, ok := strings.Cut(value, "=")
	if !ok || col == "" || subs == "" {
		return fmt.Errorf("expected Column=substring[,substring...], got %q", value)
	}
	f[col] = append(f[col], splitList(subs)...)
	return nil
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("flagger", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{set: make(map[string]bool)}
	filters := filterFlag{}
	var keys, subset string

	fs.StringVar(&opts.configPath, "config", "", "path to flagger.yaml (default: ./flagger.yaml or ./configs/flagger.yaml)")
	fs.StringVar(&opts.jobPath, "job", "", "path to a YAML or JSON job file")
	fs.BoolVar(&opts.saveSettings, "save-settings", false, "remember the job's paths and keys as defaults for later runs")
	fs.StringVar(&opts.overrides.FileDir, "dir", "", "directory holding the input workbooks")
	fs.StringVar(&opts.overrides.ConditionsPath, "conditions", "", "rules workbook (.xlsx or sheets://<spreadsheet-id>)")
	fs.StringVar(&opts.overrides.OutputPath, "output", "", "output file (.xlsx or .csv)")
	fs.IntVar(&opts.overrides.NumRowsSkip, "skip", 0, "rows below the header to skip before data begins")
	fs.StringVar(&keys, "keys", "", "comma-separated unique key columns")
	fs.BoolVar(&opts.overrides.DropDups, "drop-dups", false, "drop duplicate rows from the merged dataset")
	fs.StringVar(&subset, "dup-subset", "", "comma-separated columns compared when dropping duplicates")
	fs.Var(filters, "filter", "keep rows whose Column contains every substring (Column=a,b); repeatable")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	opts.overrides.UniqueKeys = splitList(keys)
	opts.overrides.DuplicateSubset = splitList(subset)
	if len(filters) > 0 {
		opts.overrides.ProductFilters = filters
	}
	return opts, nil
}

// buildJob layers the job file, the flags that were given and the saved
// settings, in that order of precedence (flags first).
func buildJob(opts *options, settings config.Settings) (config.Job, error) {
	var job config.Job
	if opts.jobPath != "" {
		fromFile, err := config.ReadJob(opts.jobPath)
		if err != nil {
			return config.Job{}, err
		}
		job = *fromFile
	}

	merged := opts.overrides.Merge(job)
	if !opts.set["skip"] {
		merged.NumRowsSkip = job.NumRowsSkip
	}
	if !opts.set["drop-dups"] {
		merged.DropDups = job.DropDups
	}

	return merged.Merge(settings.Job()), nil
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	f, err := app.Bootstrap(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "flagger: %v\n", err)
		return exitFail
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		f.Close(closeCtx)
	}()
	logger := infrastructure.WithComponent(f.Logger, "cli")

	settings, err := config.LoadSettings(f.Config.Paths.SettingsFile)
	if err != nil {
		logger.Warn("Ignoring unreadable settings file",
			slog.String("path", f.Config.Paths.SettingsFile),
			slog.String("error", err.Error()))
		settings = config.Settings{}
	}

	job, err := buildJob(opts, settings)
	if err != nil {
		infrastructure.WithError(logger, err).Error("Failed to read job file")
		return exitFail
	}

	if opts.saveSettings {
		if err := job.Validate(); err != nil {
			infrastructure.WithError(logger, err).Error("Not saving settings for an invalid job")
			return exitFail
		}
		if err := config.SaveSettings(f.Config.Paths.SettingsFile, config.SettingsFromJob(job)); err != nil {
			infrastructure.WithError(logger, err).Error("Failed to save settings")
			return exitFail
		}
		logger.Info("Settings saved", slog.String("path", f.Config.Paths.SettingsFile))
	}

	runner, _, err := app.NewRunner(f, nil)
	if err != nil {
		infrastructure.WithError(logger, err).Error("Failed to create runner")
		return exitFail
	}

	result, runErr := runner.Run(infrastructure.EnsureTraceID(ctx), job)

	if path := f.Config.Telemetry.MetricsTextfile; path != "" {
		if err := f.OTelProviders.WriteMetricsTextfile(path); err != nil {
			logger.Warn("Failed to write metrics textfile",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "flagger: %v (%s)\n", runErr, errorKind(runErr))
		return exitFail
	}
	if result.Outcome == pipeline.OutcomeNothingToWrite {
		fmt.Fprintln(stderr, "flagger: the rules workbook has no rule sets, nothing written")
	}
	return exitOK
}

func errorKind(err error) string {
	switch {
	case apperrors.IsConfig(err):
		return "configuration error"
	case apperrors.IsSchema(err):
		return "schema error"
	case apperrors.IsIO(err):
		return "io failure"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return "unexpected error"
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
