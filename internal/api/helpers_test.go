package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campusrun/internal/auth"
	"campusrun/internal/config"
	"campusrun/internal/database"
	"campusrun/internal/models"
	"campusrun/internal/repository"
	"campusrun/internal/service"
	"campusrun/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testAuthConfig = config.APIAuthConfig{JWTSecret: "test-secret", Issuer: "campusrun-test", TokenTTL: "1h"}

type apiEnv struct {
	db       *database.DB
	missions *service.MissionService
	tokens   *auth.JWTProvider
	server   *HTTPServer
	ts       *httptest.Server
	filesDir string
}

func newAPIEnv(t *testing.T, perMinute int) *apiEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	missions := service.NewMissionService(db, nil, nil,
		config.PricingConfig{ServiceFee: 2000, Currency: "PHP", DefaultPaymentMethod: "gcash"}, &logger)

	tokens, err := auth.NewJWTProvider(testAuthConfig)
	require.NoError(t, err)

	filesDir := t.TempDir()
	local, err := storage.NewLocalStorage(filesDir, "/files")
	require.NoError(t, err)

	cfg := config.APIConfig{Enabled: true, RateLimit: config.APIRateLimitConfig{PerMinute: perMinute}}
	server := NewHTTPServer(cfg, Dependencies{
		Missions:       missions,
		Identity:       tokens,
		Limiter:        repository.NewMemoryStateRepository(time.Hour),
		Storage:        local,
		FilesDir:       filesDir,
		MaxUploadBytes: 1 << 20,
		Health:         db.PingContext,
	}, &logger)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &apiEnv{db: db, missions: missions, tokens: tokens, server: server, ts: ts, filesDir: filesDir}
}

func (e *apiEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := e.tokens.Issue(userID, role)
	require.NoError(t, err)
	return tok
}

func (e *apiEnv) studentToken(t *testing.T, id string) string {
	return e.token(t, id, models.RoleStudent)
}

func (e *apiEnv) runnerToken(t *testing.T, id string) string {
	return e.token(t, id, models.RoleRunner)
}

// do sends a JSON request and decodes the response body into out when non-nil.
func (e *apiEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *apiEnv) createMission(t *testing.T, studentToken string) *models.Mission {
	t.Helper()
	var m models.Mission
	code := e.do(t, http.MethodPost, "/api/v1/missions", studentToken, map[string]any{
		"type":            "grocery",
		"pickup_address":  "Campus Mart",
		"dropoff_address": "Dorm B, Room 12",
		"item_cost":       10000,
	}, &m)
	require.Equal(t, http.StatusCreated, code)
	return &m
}
