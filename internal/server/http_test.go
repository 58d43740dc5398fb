package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/literacy-games/internal/auth"
	"github.com/gokatarajesh/literacy-games/internal/auth/jwt"
	"github.com/gokatarajesh/literacy-games/internal/config"
	"github.com/gokatarajesh/literacy-games/internal/content"
	"github.com/gokatarajesh/literacy-games/internal/progress"
)

type staticGames []content.GameSummary

func (g staticGames) Games() []content.GameSummary { return g }

func testConfig() *config.App {
	return &config.App{
		HTTPAddr: "127.0.0.1:0",
		CORS: config.CORS{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         600,
		},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *auth.Service) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	authSvc := auth.NewService(jwt.TokenConfig{AccessSecret: []byte("server-test")}, logger)
	srv := NewHTTPServer(testConfig(), logger, nil, nil, Routes{
		AuthService: authSvc,
		Auth:        auth.NewHTTPHandlers(authSvc, logger),
		Games:       staticGames{{GameID: "phishing", Title: "Spot the Phish", Kind: "binary", Items: 12}},
		Progress:    progress.NewHTTPHandlers(progress.NewMemoryStore(), logger),
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, authSvc
}

func TestHealthAndPing(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/v1/ping"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestListGames(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/games")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Games []content.GameSummary `json:"games"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Games, 1)
	assert.Equal(t, "phishing", body.Games[0].GameID)
}

func TestProgressRequiresToken(t *testing.T) {
	ts, authSvc := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/progress")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, tokens, err := authSvc.CreateGuest(auth.GuestRequest{DisplayName: "Sam"})
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/progress", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/v1/games", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWSUpgraderOrigins(t *testing.T) {
	upgrader := NewWSUpgrader([]string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodGet, "/ws/play", nil)
	assert.True(t, upgrader.CheckOrigin(req), "no origin header")

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, upgrader.CheckOrigin(req))

	assert.True(t, NewWSUpgrader([]string{"*"}).CheckOrigin(req))
}
