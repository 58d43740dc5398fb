//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

func TestGuestIdentity(t *testing.T) {
	baseURL := envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
	guest := createGuest(t, baseURL, "Robin")

	resp := makeAuthenticatedRequest(t, http.MethodGet, fmt.Sprintf("%s/v1/players/me", baseURL), guest.AccessToken, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var me struct {
		PlayerID string `json:"player_id"`
		IsGuest  bool   `json:"is_guest"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatalf("decode me failed: %v", err)
	}
	if me.PlayerID != guest.ID || !me.IsGuest {
		t.Fatalf("unexpected identity: %+v", me)
	}

	refresh := makeAuthenticatedRequest(t, http.MethodPost, fmt.Sprintf("%s/v1/players/refresh", baseURL), "",
		map[string]string{"refresh_token": guest.RefreshToken})
	defer refresh.Body.Close()
	if refresh.StatusCode != http.StatusOK {
		t.Fatalf("refresh failed with %d", refresh.StatusCode)
	}
}

func TestUnauthorizedAccess(t *testing.T) {
	baseURL := envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")

	for _, path := range []string{"/v1/players/me", "/v1/progress"} {
		resp := makeAuthenticatedRequest(t, http.MethodGet, baseURL+path, "", nil)
		var errResp map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d, error: %v", path, resp.StatusCode, errResp)
		}
		if errResp["error"] == nil {
			t.Fatalf("%s: error field is missing", path)
		}
	}
}

func TestQuizCompletionCountsOnce(t *testing.T) {
	baseURL := envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
	guest := createGuest(t, baseURL, "Quizzer")

	for i := 0; i < 2; i++ {
		resp := makeAuthenticatedRequest(t, http.MethodPost, fmt.Sprintf("%s/v1/progress/quizzes/passwords-101", baseURL), guest.AccessToken, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("quiz completion %d failed with %d", i, resp.StatusCode)
		}
	}

	resp := makeAuthenticatedRequest(t, http.MethodGet, fmt.Sprintf("%s/v1/progress", baseURL), guest.AccessToken, nil)
	defer resp.Body.Close()

	var out struct {
		Summary struct {
			QuizzesCompleted int `json:"quizzes_completed"`
		} `json:"summary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode progress failed: %v", err)
	}
	if out.Summary.QuizzesCompleted != 1 {
		t.Fatalf("expected 1 quiz completed, got %d", out.Summary.QuizzesCompleted)
	}

	bad := makeAuthenticatedRequest(t, http.MethodPost, fmt.Sprintf("%s/v1/progress/quizzes/Not%%20Valid", baseURL), guest.AccessToken, nil)
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid quiz id, got %d", bad.StatusCode)
	}
}
