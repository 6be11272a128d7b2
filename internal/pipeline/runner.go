package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/api/option"

	"flagcli/internal/config"
	"flagcli/internal/dataset"
	apperrors "flagcli/internal/errors"
	"flagcli/internal/files"
	"flagcli/internal/infrastructure"
	"flagcli/internal/rules"
	"flagcli/internal/validation"
	"flagcli/internal/workbook"
)

// previewRows is how many merged rows are logged at debug level
const previewRows = 5

// ExecContext carries the collaborators a run reports through. Zero fields
// are replaced with no-op implementations. RunID, when set, names every run
// of the Runner; otherwise the id comes from the context or is generated.
type ExecContext struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *infrastructure.PipelineMetrics
	Events  EventSink
	RunID   string
}

// Options configures a Runner
type Options struct {
	// Cleanup and DownloadsDir control removal of stale downloads before a run
	Cleanup      config.CleanupConfig
	DownloadsDir string
	// SourceOptions are passed to the Google Sheets client for sheets:// rules
	SourceOptions []option.ClientOption
}

// SourceOpener resolves a rules location to a workbook source
type SourceOpener func(ctx context.Context, location string) (workbook.Source, error)

// Runner executes flagging jobs. A Runner holds no per-run state and may be
// reused; callers serialize runs that share an output path.
type Runner struct {
	exec      ExecContext
	opts      Options
	discovery *files.Discovery
	manager   *files.Manager
	validator *validation.FileValidator
	open      SourceOpener
	now       func() time.Time
}

// NewRunner creates a runner
func NewRunner(exec ExecContext, opts Options) *Runner {
	if exec.Logger == nil {
		exec.Logger = infrastructure.DiscardLogger()
	}
	if exec.Tracer == nil {
		exec.Tracer = tracenoop.NewTracerProvider().Tracer("pipeline")
	}
	if exec.Events == nil {
		exec.Events = nopSink{}
	}
	exec.Logger = infrastructure.WithComponent(exec.Logger, "pipeline")

	r := &Runner{
		exec:      exec,
		opts:      opts,
		discovery: files.NewDiscovery(""),
		manager:   files.NewManager(exec.Logger),
		validator: validation.NewFileValidator(exec.Logger),
		now:       time.Now,
	}
	r.open = func(ctx context.Context, location string) (workbook.Source, error) {
		return workbook.OpenSource(ctx, location, r.opts.SourceOptions...)
	}
	return r
}

// WithSourceOpener replaces how rules locations are opened
func (r *Runner) WithSourceOpener(open SourceOpener) *Runner {
	r.open = open
	return r
}

// run holds the state of one execution
type run struct {
	job    config.Job
	result *Result

	input  dataset.Dataset
	set    *rules.Set
	frames []dataset.Dataset
	merged dataset.Dataset
}

// Run executes job: load the newest input workbook, filter it, annotate one
// copy per rule set, merge the copies on the unique keys, optionally drop
// duplicates and write the result. The returned Result is never nil; on
// failure its Outcome is OutcomeFailed and the error is returned as well.
func (r *Runner) Run(ctx context.Context, job config.Job) (*Result, error) {
	runID := r.exec.RunID
	if runID == "" {
		runID = infrastructure.GetRunID(ctx)
	}
	if runID == "" {
		runID = infrastructure.NewRunID()
	}
	ctx = infrastructure.WithRunID(ctx, runID)

	st := &run{
		job: job,
		result: &Result{
			RunID:      runID,
			RulesPath:  job.ConditionsPath,
			OutputPath: job.OutputPath,
			StartedAt:  r.now(),
		},
	}

	ctx, span := r.exec.Tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("job.file_dir", job.FileDir),
		attribute.String("job.conditions_path", job.ConditionsPath),
		attribute.String("job.output_path", job.OutputPath),
	))
	defer span.End()
	if traceID := infrastructure.TraceIDFromContext(ctx); traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, traceID)
	}
	ctx = infrastructure.EnsureTraceID(ctx)

	r.exec.Metrics.RecordActiveRun(ctx, 1)
	defer r.exec.Metrics.RecordActiveRun(ctx, -1)

	r.exec.Logger.InfoContext(ctx, "Starting flagging run",
		slog.String("file_dir", job.FileDir),
		slog.String("conditions_path", job.ConditionsPath),
		slog.String("output_path", job.OutputPath))
	r.publish(ctx, Event{Type: EventRunStarted, RunID: runID, Data: map[string]interface{}{
		"file_dir":        job.FileDir,
		"conditions_path": job.ConditionsPath,
		"output_path":     job.OutputPath,
	}})

	err := r.execute(ctx, st)
	return r.finish(ctx, st, err)
}

func (r *Runner) execute(ctx context.Context, st *run) error {
	if err := r.stage(ctx, st, StageValidate, r.validate); err != nil {
		return err
	}
	if r.opts.Cleanup.Enabled {
		if err := r.stage(ctx, st, StageCleanup, r.cleanup); err != nil {
			return err
		}
	} else {
		r.skip(st, StageCleanup)
	}

	for _, s := range []struct {
		name string
		fn   func(context.Context, *run) error
	}{
		{StageLoad, r.load},
		{StageFilter, r.filter},
		{StageRules, r.loadRules},
	} {
		if err := r.stage(ctx, st, s.name, s.fn); err != nil {
			return err
		}
	}

	if st.set.Len() == 0 {
		return nil
	}

	if err := r.stage(ctx, st, StageAnnotate, r.annotate); err != nil {
		return err
	}
	if err := r.stage(ctx, st, StageMerge, r.merge); err != nil {
		return err
	}
	if st.job.DropDups {
		if err := r.stage(ctx, st, StageDedup, r.dedup); err != nil {
			return err
		}
	} else {
		r.skip(st, StageDedup)
	}
	return r.stage(ctx, st, StageWrite, r.write)
}

func (r *Runner) finish(ctx context.Context, st *run, err error) (*Result, error) {
	res := st.result
	res.FinishedAt = r.now()
	log := r.exec.Logger

	switch {
	case err != nil:
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		infrastructure.RecordError(ctx, err)
		log.ErrorContext(ctx, "Flagging run failed",
			slog.String("error", err.Error()),
			slog.String("error_type", errorType(err)),
			slog.Duration("duration", res.Duration()))
		r.publish(ctx, Event{Type: EventRunFailed, RunID: res.RunID, Message: err.Error()})

	case st.set.Len() == 0:
		res.Outcome = OutcomeNothingToWrite
		for _, stage := range []string{StageAnnotate, StageMerge, StageDedup, StageWrite} {
			r.skip(st, stage)
		}
		log.WarnContext(ctx, "No data to write, the rules workbook has no rule sets",
			slog.String("conditions_path", st.job.ConditionsPath))
		r.publish(ctx, Event{Type: EventRunEmpty, RunID: res.RunID, Message: "No data to write"})

	default:
		res.Outcome = OutcomeWritten
		log.InfoContext(ctx, "Flagging run completed",
			slog.String("output_path", res.OutputPath),
			slog.Int("rows_written", res.RowsWritten),
			slog.Int("rule_sets", len(res.RuleSets)),
			slog.Duration("duration", res.Duration()))
		r.publish(ctx, Event{Type: EventRunCompleted, RunID: res.RunID, Message: "Output written", Data: map[string]interface{}{
			"output_path":  res.OutputPath,
			"rows_written": res.RowsWritten,
		}})
	}

	r.exec.Metrics.RecordRun(ctx, string(res.Outcome), res.Duration())
	if err != nil {
		return res, err
	}
	return res, nil
}

// stage runs fn inside its own span, timing it and reporting it to the
// metrics, the log and the event sink.
func (r *Runner) stage(ctx context.Context, st *run, name string, fn func(context.Context, *run) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled before %s: %w", name, err)
	}

	ctx, span := r.exec.Tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	r.publish(ctx, Event{Type: EventStageStarted, RunID: st.result.RunID, Stage: name})
	start := time.Now()
	err := fn(ctx, st)
	elapsed := time.Since(start)

	state := StageState{Name: name, Status: StageStatusCompleted, Duration: elapsed}
	errType := ""
	if err != nil {
		errType = errorType(err)
		state.Status = StageStatusFailed
		state.Error = err.Error()
		infrastructure.RecordError(ctx, err)
		r.publish(ctx, Event{Type: EventStageFailed, RunID: st.result.RunID, Stage: name, Message: err.Error()})
	} else {
		r.publish(ctx, Event{Type: EventStageCompleted, RunID: st.result.RunID, Stage: name})
	}
	st.result.Stages = append(st.result.Stages, state)
	r.exec.Metrics.RecordStage(ctx, name, elapsed, errType)

	r.exec.Logger.DebugContext(ctx, "Stage finished",
		slog.String("stage", name),
		slog.String("status", string(state.Status)),
		slog.Duration("duration", elapsed))
	return err
}

func (r *Runner) skip(st *run, name string) {
	st.result.Stages = append(st.result.Stages, StageState{Name: name, Status: StageStatusSkipped})
}

func (r *Runner) validate(_ context.Context, st *run) error {
	if err := st.job.Validate(); err != nil {
		return err
	}
	return r.validator.Preflight(st.job)
}

func (r *Runner) cleanup(ctx context.Context, st *run) error {
	r.exec.Logger.InfoContext(ctx, "Performing local cleanup",
		slog.String("dir", r.opts.DownloadsDir),
		slog.Int("max_age_days", r.opts.Cleanup.MaxAgeDays))
	deleted, err := r.manager.DeleteOlderThan(r.opts.DownloadsDir, r.opts.Cleanup.MaxAge())
	st.result.Deleted = deleted
	return err
}

func (r *Runner) load(ctx context.Context, st *run) error {
	input, err := r.discovery.FindLatestExcelFile(st.job.FileDir)
	if err != nil {
		return err
	}
	st.result.InputPath = input.Path

	rows, err := workbook.ReadSheetRows(input.Path)
	if err != nil {
		return err
	}
	ds, err := dataset.FromRows(rows, st.job.NumRowsSkip)
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return appErr.WithContext("input", input.Path)
		}
		return err
	}

	st.input = ds
	st.result.RowsLoaded = ds.Len()
	r.exec.Metrics.RecordRows(ctx, StageLoad, ds.Len())
	r.exec.Logger.InfoContext(ctx, "Loaded input workbook",
		slog.String("path", input.Path),
		slog.Int("rows", ds.Len()),
		slog.Int("columns", len(ds.Columns)))
	return nil
}

func (r *Runner) filter(ctx context.Context, st *run) error {
	filters := dataset.FiltersFromMap(st.job.ProductFilters)
	ds, err := dataset.Filter(st.input, filters)
	if err != nil {
		return err
	}

	st.input = ds
	st.result.RowsFiltered = ds.Len()
	r.exec.Metrics.RecordRows(ctx, StageFilter, ds.Len())
	if len(filters) > 0 {
		r.exec.Logger.InfoContext(ctx, "Applied product filters",
			slog.Int("filters", len(filters)),
			slog.Int("rows_before", st.result.RowsLoaded),
			slog.Int("rows_after", ds.Len()))
	}
	return nil
}

func (r *Runner) loadRules(ctx context.Context, st *run) error {
	src, err := r.open(ctx, st.job.ConditionsPath)
	if err != nil {
		return err
	}
	wb, err := src.Load(ctx)
	if err != nil {
		return err
	}
	set, err := rules.Load(wb)
	if err != nil {
		return err
	}

	for _, rs := range set.RuleSets {
		if len(rs.Unrecognized) > 0 {
			r.exec.Logger.DebugContext(ctx, "Ignoring unrecognized rule columns",
				slog.String("rule_set", rs.Name),
				slog.String("columns", strings.Join(rs.Unrecognized, ", ")))
		}
	}
	st.set = set
	r.exec.Logger.InfoContext(ctx, "Loaded rule sets",
		slog.String("source", src.Location()),
		slog.Int("count", set.Len()),
		slog.String("names", strings.Join(set.Names(), ", ")))
	return nil
}

func (r *Runner) annotate(ctx context.Context, st *run) error {
	st.frames = make([]dataset.Dataset, 0, st.set.Len())
	for _, rs := range st.set.RuleSets {
		frame, hits, err := rules.Annotate(st.input, rs)
		if err != nil {
			return err
		}
		st.frames = append(st.frames, frame)
		st.result.RuleSets = append(st.result.RuleSets, RuleSetSummary{
			Name:      rs.Name,
			Indicator: rs.IndicatorColumn(),
			Hits:      hits,
		})
		r.exec.Metrics.RecordIndicatorHits(ctx, rs.Name, hits)
		r.exec.Logger.InfoContext(ctx, "Evaluated rule set",
			slog.String("rule_set", rs.Name),
			slog.Int("hits", hits),
			slog.Int("rows", frame.Len()))
	}
	return nil
}

func (r *Runner) merge(ctx context.Context, st *run) error {
	merged, err := dataset.MergeAll(st.frames, st.job.UniqueKeys)
	if err != nil {
		return err
	}
	st.merged = merged
	st.result.RowsMerged = merged.Len()
	r.exec.Metrics.RecordRows(ctx, StageMerge, merged.Len())
	return nil
}

func (r *Runner) dedup(ctx context.Context, st *run) error {
	deduped, err := dataset.DropDuplicates(st.merged, st.job.DuplicateSubset)
	if err != nil {
		return err
	}
	r.exec.Logger.InfoContext(ctx, "Dropped duplicate rows",
		slog.Int("removed", st.merged.Len()-deduped.Len()),
		slog.Any("subset", st.job.DuplicateSubset))
	st.merged = deduped
	return nil
}

func (r *Runner) write(ctx context.Context, st *run) error {
	if r.exec.Logger.Enabled(ctx, slog.LevelDebug) {
		r.exec.Logger.DebugContext(ctx, "Merged dataset preview",
			slog.Any("columns", st.merged.Columns),
			slog.Any("rows", st.merged.Head(previewRows)))
	}

	opts := workbook.WriteOptions{
		BoolColumns: st.set.IndicatorColumns(),
		BOMPrefix:   strings.EqualFold(filepath.Ext(st.job.OutputPath), ".csv"),
	}
	if err := workbook.Write(st.job.OutputPath, st.merged, opts); err != nil {
		return err
	}
	st.result.RowsWritten = st.merged.Len()
	r.exec.Metrics.RecordRows(ctx, StageWrite, st.merged.Len())
	r.exec.Logger.InfoContext(ctx, "Output written", slog.String("path", st.job.OutputPath))
	return nil
}

func (r *Runner) publish(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now()
	}
	r.exec.Events.Publish(ctx, e)
}

func errorType(err error) string {
	if t := apperrors.TypeOf(err); t != "" {
		return string(t)
	}
	return "UNKNOWN"
}
