package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flagcli/internal/config"
	apperrors "flagcli/internal/errors"
	"flagcli/internal/infrastructure"
	"flagcli/internal/pipeline"
)

type fakeRunner struct {
	mu      sync.Mutex
	jobs    []config.Job
	result  *pipeline.Result
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, job config.Job) (*pipeline.Result, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.result != nil {
		return f.result, f.err
	}
	return &pipeline.Result{RunID: "run-1", Outcome: pipeline.OutcomeWritten, OutputPath: job.OutputPath}, f.err
}

func (f *fakeRunner) lastJob(t *testing.T) config.Job {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.jobs)
	return f.jobs[len(f.jobs)-1]
}

const validJob = `{
	"file_dir": "downloads",
	"conditions_path": "rules.xlsx",
	"output_path": "out/flagged.xlsx",
	"unique_keys": ["Account"]
}`

func newRouter(h *RunsHandler) http.Handler {
	r := chi.NewRouter()
	r.Mount("/api/runs", h.Routes())
	return r
}

func postRun(t *testing.T, h http.Handler, query, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/runs/"+query, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.APIError {
	t.Helper()
	var body struct {
		Success bool               `json:"success"`
		Error   apperrors.APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error
}

func TestRunsHandler_Create(t *testing.T) {
	runner := &fakeRunner{}
	h := NewRunsHandler(runner, filepath.Join(t.TempDir(), "settings.json"), 0, infrastructure.DiscardLogger())

	rec := postRun(t, newRouter(h), "", validJob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.Equal(t, pipeline.OutcomeWritten, resp.Result.Outcome)
	assert.Equal(t, "out/flagged.xlsx", resp.Result.OutputPath)

	job := runner.lastJob(t)
	assert.Equal(t, "downloads", job.FileDir)
	assert.Equal(t, []string{"Account"}, job.UniqueKeys)
}

func TestRunsHandler_Create_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"missing fields", `{"file_dir":"downloads"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"bad output extension", strings.Replace(validJob, "flagged.xlsx", "flagged.txt", 1), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"negative skip", strings.Replace(validJob, `"file_dir"`, `"num_rows_skip": -2, "file_dir"`, 1), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown field", `{"colour":"red"}`, http.StatusBadRequest, "INVALID_JSON"},
		{"malformed", `{"file_dir":`, http.StatusBadRequest, "INVALID_JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			h := NewRunsHandler(runner, filepath.Join(t.TempDir(), "settings.json"), 0, infrastructure.DiscardLogger())

			rec := postRun(t, newRouter(h), "", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).ErrorCode)
			assert.Empty(t, runner.jobs)
		})
	}
}

func TestRunsHandler_Create_UnsupportedContentType(t *testing.T) {
	h := NewRunsHandler(&fakeRunner{}, filepath.Join(t.TempDir(), "settings.json"), 0, infrastructure.DiscardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/runs/", strings.NewReader(validJob))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", decodeError(t, rec).ErrorCode)
}

func TestRunsHandler_Create_MergesSavedSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, config.SaveSettings(path, config.Settings{
		FileDir:        "saved-downloads",
		ConditionsPath: "saved-rules.xlsx",
		OutputPath:     "saved.csv",
		UniqueKeys:     []string{"Id"},
	}))

	runner := &fakeRunner{}
	h := NewRunsHandler(runner, path, 0, infrastructure.DiscardLogger())

	rec := postRun(t, newRouter(h), "", `{"output_path":"override.xlsx","drop_dups":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	job := runner.lastJob(t)
	assert.Equal(t, "saved-downloads", job.FileDir)
	assert.Equal(t, "saved-rules.xlsx", job.ConditionsPath)
	assert.Equal(t, "override.xlsx", job.OutputPath)
	assert.Equal(t, []string{"Id"}, job.UniqueKeys)
	assert.True(t, job.DropDups)
}

func TestRunsHandler_Create_SaveSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	h := NewRunsHandler(&fakeRunner{}, path, 0, infrastructure.DiscardLogger())

	rec := postRun(t, newRouter(h), "?save_settings=true", validJob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saved, err := config.LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, config.Settings{
		FileDir:        "downloads",
		ConditionsPath: "rules.xlsx",
		OutputPath:     "out/flagged.xlsx",
		UniqueKeys:     []string{"Account"},
	}, saved)
}

func TestRunsHandler_Create_UnreadableSettingsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, writeFile(path, "{not json"))

	runner := &fakeRunner{}
	h := NewRunsHandler(runner, path, 0, infrastructure.DiscardLogger())

	rec := postRun(t, newRouter(h), "", validJob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "downloads", runner.lastJob(t).FileDir)
}

func TestRunsHandler_Create_RunInProgress(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := NewRunsHandler(runner, filepath.Join(t.TempDir(), "settings.json"), 0, infrastructure.DiscardLogger())
	router := newRouter(h)

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- postRun(t, router, "", validJob) }()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not start")
	}

	rec := postRun(t, router, "", validJob)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "RUN_IN_PROGRESS", decodeError(t, rec).ErrorCode)

	close(runner.release)
	select {
	case rec := <-first:
		assert.Equal(t, http.StatusOK, rec.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not finish")
	}
}

func TestRunsHandler_Create_RejectedRunKeepsSettings(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	path := filepath.Join(t.TempDir(), "settings.json")
	h := NewRunsHandler(runner, path, 0, infrastructure.DiscardLogger())
	router := newRouter(h)

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- postRun(t, router, "", validJob) }()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not start")
	}

	other := strings.Replace(validJob, "out/flagged.xlsx", "other.csv", 1)
	rec := postRun(t, router, "?save_settings=true", other)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoFileExists(t, path, "a rejected run must not save settings")

	close(runner.release)
	select {
	case rec := <-first:
		assert.Equal(t, http.StatusOK, rec.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not finish")
	}

	// Once the lock is free the same request saves
	idle := NewRunsHandler(&fakeRunner{}, path, 0, infrastructure.DiscardLogger())
	rec = postRun(t, newRouter(idle), "?save_settings=true", other)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved, err := config.LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "other.csv", saved.OutputPath)
}

func TestRunsHandler_Create_RunErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"config", apperrors.NewConfigError("unique key values repeat within a dataset", nil), http.StatusBadRequest, "CONFIGURATION_ERROR"},
		{"schema", apperrors.NewSchemaError("unknown column", nil), http.StatusUnprocessableEntity, "SCHEMA_ERROR"},
		{"io", apperrors.NewIOError("no input workbook", nil), http.StatusInternalServerError, "IO_FAILURE"},
		{"cancelled", context.Canceled, http.StatusInternalServerError, "RUN_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{
				result: &pipeline.Result{RunID: "run-x", Outcome: pipeline.OutcomeFailed, Error: tt.err.Error()},
				err:    tt.err,
			}
			h := NewRunsHandler(runner, filepath.Join(t.TempDir(), "settings.json"), 0, infrastructure.DiscardLogger())
			router := newRouter(h)

			rec := postRun(t, router, "", validJob)
			assert.Equal(t, tt.wantStatus, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)

			details, ok := apiErr.Details.(map[string]interface{})
			require.True(t, ok, "failed result is attached as details")
			assert.Equal(t, "run-x", details["run_id"])

			last := httptest.NewRecorder()
			router.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/api/runs/last", nil))
			require.Equal(t, http.StatusOK, last.Code)
			var resp RunResponse
			require.NoError(t, json.Unmarshal(last.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, pipeline.OutcomeFailed, resp.Result.Outcome)
		})
	}
}

func TestRunsHandler_Create_Timeout(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	h := NewRunsHandler(runner, filepath.Join(t.TempDir(), "settings.json"), 20*time.Millisecond, infrastructure.DiscardLogger())

	rec := postRun(t, newRouter(h), "", validJob)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "RUN_FAILED", decodeError(t, rec).ErrorCode)
}

func TestRunsHandler_Last(t *testing.T) {
	h := NewRunsHandler(&fakeRunner{}, filepath.Join(t.TempDir(), "settings.json"), 0, infrastructure.DiscardLogger())
	router := newRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/last", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).ErrorCode)

	require.Equal(t, http.StatusOK, postRun(t, router, "", validJob).Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/last", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "run-1", resp.Result.RunID)
}
