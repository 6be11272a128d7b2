package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flagcli/internal/config"
	"flagcli/internal/infrastructure"
	"flagcli/internal/pipeline"
	"flagcli/internal/shared/testutil"
)

func newTestFoundation(t *testing.T) *Foundation {
	t.Helper()
	base := t.TempDir()

	cfg := config.Default()
	cfg.Paths.BaseDir = base
	cfg.Paths.DownloadsDir = filepath.Join(base, "downloads")
	cfg.Paths.SettingsFile = filepath.Join(base, "settings.json")
	cfg.Server.RateLimit.Enabled = false
	cfg.Server.ShutdownTimeout = 5 * time.Second

	providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), infrastructure.DiscardLogger())
	require.NoError(t, err)

	return &Foundation{
		Config:        cfg,
		Logger:        infrastructure.DiscardLogger(),
		OTelProviders: providers,
	}
}

func newTestApp(t *testing.T, f *Foundation) *Application {
	t.Helper()
	a, err := New(f)
	require.NoError(t, err)
	a.WebSocketHub.Start()
	t.Cleanup(a.WebSocketHub.Stop)
	return a
}

func writeFixtures(t *testing.T, dir string) config.Job {
	t.Helper()
	in := filepath.Join(dir, "in")
	rules := filepath.Join(dir, "rules.xlsx")

	testutil.WriteWorkbook(t, filepath.Join(in, "export.xlsx"), testutil.FixtureSheet{
		Name: "Export",
		Rows: [][]string{
			{"Account,Name,,Region"},
			{"1", "Acme Corp", "gold member", "EU"},
			{"2", "Other", "", "US"},
		},
	})
	testutil.WriteWorkbook(t, rules, testutil.FixtureSheet{
		Name: "Risky",
		Rows: [][]string{
			{"Identifiers", "Fields To Be Searched"},
			{"acme", "Name"},
		},
	})

	return config.Job{
		FileDir:        in,
		ConditionsPath: rules,
		OutputPath:     filepath.Join(dir, "out", "flags.csv"),
		NumRowsSkip:    0,
		UniqueKeys:     []string{"Account"},
	}
}

func TestApplication_RunOverHTTP(t *testing.T) {
	f := newTestFoundation(t)
	a := newTestApp(t, f)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var greeting map[string]interface{}
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, "connection", greeting["type"])

	job := writeFixtures(t, f.Config.Paths.BaseDir)
	body, err := json.Marshal(job)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/runs/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var run struct {
		Success bool             `json:"success"`
		Result  *pipeline.Result `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.True(t, run.Success)
	assert.Equal(t, pipeline.OutcomeWritten, run.Result.Outcome)
	assert.Equal(t, 2, run.Result.RowsWritten)
	assert.FileExists(t, job.OutputPath)

	// Events arrive in order; the feed ends with the completion event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var types []pipeline.EventType
	for {
		var ev pipeline.Event
		require.NoError(t, conn.ReadJSON(&ev))
		types = append(types, ev.Type)
		if ev.Type == pipeline.EventRunCompleted {
			assert.Equal(t, run.Result.RunID, ev.RunID)
			break
		}
	}
	assert.Equal(t, pipeline.EventRunStarted, types[0])

	metrics := get(t, srv.URL+"/metrics")
	assert.Contains(t, metrics, "flagger_runs_total")
	assert.Contains(t, metrics, "http_requests_total")

	health := get(t, srv.URL+"/api/health")
	assert.Contains(t, health, `"websocket_clients":1`)
}

func TestApplication_RunOverHTTP_InvalidJob(t *testing.T) {
	a := newTestApp(t, newTestFoundation(t))

	req := httptest.NewRequest(http.MethodPost, "/api/runs/", strings.NewReader(`{"unique_keys":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
}

func TestApplication_RateLimit(t *testing.T) {
	f := newTestFoundation(t)
	f.Config.Server.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.5, Burst: 1}
	a := newTestApp(t, f)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "metrics are outside the limited group")
}

func TestApplication_ServeUntilCancelled(t *testing.T) {
	a, err := New(newTestFoundation(t))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = http.Get(url)
	assert.Error(t, err)
}

func TestSourceOptions(t *testing.T) {
	assert.Empty(t, SourceOptions(config.GoogleConfig{}))
	assert.Len(t, SourceOptions(config.GoogleConfig{CredentialsFile: "/etc/flagger/sa.json"}), 1)
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
