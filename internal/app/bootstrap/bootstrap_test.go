package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	assemblyhttp "bureausocial/contexts/governance/assembly-voting/transport/http"
	"bureausocial/internal/platform/config"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "bureau.db")
	cfg.OutboxPollInterval = 10 * time.Millisecond
	return cfg
}

func TestAPIAndWorkerShareTheOutbox(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	logger := slog.Default()

	admin, err := SeedAdmin(ctx, cfg, logger, "Ada Admin", " Admin@Example.org ")
	require.NoError(t, err)
	require.True(t, admin.IsAdmin)
	require.Equal(t, "admin@example.org", admin.Email)

	api, err := BuildAPI(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, api.Close()) })
	require.NotNil(t, api.worker, "no broker configured, worker runs in-process")

	call := func(method string, path string, body any) *httptest.ResponseRecorder {
		var raw []byte
		if body != nil {
			raw, err = json.Marshal(body)
			require.NoError(t, err)
		}
		req := httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-Id", admin.MemberID)
		req.Header.Set("X-User-Admin", "true")
		rr := httptest.NewRecorder()
		api.Handler().ServeHTTP(rr, req)
		return rr
	}

	rr := call(http.MethodPost, "/api/v1/assemblies", assemblyhttp.CreateAssemblyRequest{
		Title:            "Annual assembly",
		Type:             "ordinary",
		ScheduledAt:      time.Date(2026, 11, 20, 18, 0, 0, 0, time.UTC),
		Location:         "Hall",
		QuorumPercentage: 50,
		EligibilityRule:  "all",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var assembly assemblyhttp.AssemblyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &assembly))

	rr = call(http.MethodPost, "/api/v1/assemblies/"+assembly.AssemblyID+"/start", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	worker, err := BuildWorker(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, worker.Close()) })

	published, err := worker.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, published)

	published, err = worker.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, published)
}

func TestSeedAdminRejectsInvalidEmail(t *testing.T) {
	_, err := SeedAdmin(context.Background(), testConfig(t), slog.Default(), "Ada", "not-an-email")
	require.Error(t, err)
}

func TestAPIAppStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTPPort = "127.0.0.1:0"

	api, err := BuildAPI(cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, api.Close()) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- api.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("api app did not stop after cancel")
	}
}
