package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karvelas/lodestar/internal/config"
	"github.com/karvelas/lodestar/internal/di"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	log := zerolog.New(nil).Level(zerolog.Disabled)
	cfg := &config.Config{
		DataDir:        t.TempDir(),
		Port:           8710,
		ScoringWorkers: 1,
		CheckpointCron: "0 0 * * * *",
		BackupDir:      t.TempDir(),
	}

	container, err := di.Wire(cfg, log)
	require.NoError(t, err)
	t.Cleanup(container.Close)

	return New(cfg, container, log)
}

func TestServer_HealthReportsAllDatabases(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status    string            `json:"status"`
		Databases map[string]string `json:"databases"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	for _, name := range []string{"universe", "config", "ledger", "history", "cache"} {
		assert.Equal(t, "ok", body.Databases[name], name)
	}
}

func TestServer_ModuleRoutesAreMounted(t *testing.T) {
	srv := testServer(t)

	// A sample endpoint per module; anything but 404 means the route
	// tree has the module mounted.
	paths := []string{
		"/api/universe",
		"/api/prices",
		"/api/strategies",
		"/api/blends",
		"/api/rankings",
		"/api/brokers",
		"/api/portfolios",
		"/api/settings",
		"/api/system/status",
	}
	for _, path := range paths {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.NotEqual(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestServer_UnknownJobTriggerReturns404(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/system/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_TriggerRegisteredJob(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/system/jobs/wal_checkpoint", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
