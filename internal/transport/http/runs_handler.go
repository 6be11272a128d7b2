package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"flagcli/internal/config"
	apperrors "flagcli/internal/errors"
	"flagcli/internal/infrastructure"
	"flagcli/internal/middleware"
	"flagcli/internal/pipeline"
)

// RunExecutor runs a flagging job
type RunExecutor interface {
	Run(ctx context.Context, job config.Job) (*pipeline.Result, error)
}

// RunResponse wraps a finished run
type RunResponse struct {
	Success bool             `json:"success"`
	Result  *pipeline.Result `json:"result"`
}

// Render implements render.Renderer
func (r *RunResponse) Render(w http.ResponseWriter, req *http.Request) error {
	return nil
}

// RunsHandler starts flagging runs over HTTP. Only one run executes at a time;
// a request arriving while a run is active gets 409.
type RunsHandler struct {
	runner       RunExecutor
	validator    *middleware.RequestValidator
	settingsPath string
	timeout      time.Duration
	logger       *slog.Logger

	active sync.Mutex

	mu   sync.RWMutex
	last *pipeline.Result
}

// NewRunsHandler creates a runs handler. Jobs are completed with the saved
// settings at settingsPath; a zero timeout means runs are bounded only by
// the request.
func NewRunsHandler(runner RunExecutor, settingsPath string, timeout time.Duration, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = infrastructure.DiscardLogger()
	}
	return &RunsHandler{
		runner:       runner,
		validator:    middleware.NewRequestValidator(logger),
		settingsPath: settingsPath,
		timeout:      timeout,
		logger:       logger.With(slog.String("handler", "runs")),
	}
}

// Routes mounts the handler under /api/runs
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(middleware.ContentTypeValidator("application/json")).Post("/", h.Create)
	r.Get("/last", h.Last)
	return r
}

// Create handles POST /api/runs. The body is a job; fields it leaves empty
// are taken from the saved settings. With ?save_settings=true the job's
// paths and keys are saved once the job is valid and no other run holds the
// lock.
func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var job config.Job
	if apiErr := h.validator.Decode(r, &job); apiErr != nil {
		h.fail(w, r, apiErr)
		return
	}

	settings, err := config.LoadSettings(h.settingsPath)
	if err != nil {
		h.logger.WarnContext(ctx, "Ignoring unreadable settings file",
			slog.String("path", h.settingsPath),
			slog.String("error", err.Error()))
		settings = config.Settings{}
	}
	job = job.Merge(settings.Job())

	if apiErr := h.validator.Struct(&job); apiErr != nil {
		h.fail(w, r, apiErr)
		return
	}

	if !h.active.TryLock() {
		h.fail(w, r, apperrors.ErrRunInProgress)
		return
	}
	defer h.active.Unlock()

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save_settings")); save {
		if err := config.SaveSettings(h.settingsPath, config.SettingsFromJob(job)); err != nil {
			h.logger.ErrorContext(ctx, "Failed to save settings", slog.String("error", err.Error()))
			h.fail(w, r, apperrors.FromAppError(err))
			return
		}
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	h.logger.InfoContext(ctx, "Run requested",
		slog.String("file_dir", job.FileDir),
		slog.String("output_path", job.OutputPath))

	result, err := h.runner.Run(ctx, job)
	if result != nil {
		h.mu.Lock()
		h.last = result
		h.mu.Unlock()
	}
	if err != nil {
		apiErr := apperrors.FromAppError(err)
		if result != nil {
			apiErr = apperrors.NewWithDetails(apiErr.StatusCode, apiErr.ErrorCode, apiErr.Message, result)
		}
		h.fail(w, r, apiErr)
		return
	}

	render.Status(r, http.StatusOK)
	render.Render(w, r, &RunResponse{Success: true, Result: result})
}

// Last handles GET /api/runs/last
func (h *RunsHandler) Last(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	last := h.last
	h.mu.RUnlock()

	if last == nil {
		h.fail(w, r, apperrors.NewWithDetails(http.StatusNotFound, "NOT_FOUND", "No run has finished yet", nil))
		return
	}
	render.Render(w, r, &RunResponse{Success: last.Outcome != pipeline.OutcomeFailed, Result: last})
}

func (h *RunsHandler) fail(w http.ResponseWriter, r *http.Request, apiErr *apperrors.APIError) {
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Run request failed",
			slog.String("error_code", apiErr.ErrorCode),
			slog.String("message", apiErr.Message))
	}
	render.Render(w, r, apperrors.NewErrorResponse(apiErr))
}
