package progress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/literacy-games/internal/auth"
	"github.com/gokatarajesh/literacy-games/internal/auth/jwt"
	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
	httperrors "github.com/gokatarajesh/literacy-games/pkg/http/errors"
)

func authed(r *http.Request, playerID uuid.UUID) *http.Request {
	return r.WithContext(auth.WithClaims(r.Context(), &jwt.Claims{PlayerID: playerID, DisplayName: "Robin", IsGuest: true}))
}

func progressMux(h *HTTPHandlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/progress", h.GetProgress)
	mux.HandleFunc("/v1/progress/quizzes/{quizID}", h.CompleteQuiz)
	return mux
}

func TestGetProgress(t *testing.T) {
	store := NewMemoryStore()
	player := uuid.New()
	ctx := context.Background()
	require.NoError(t, store.RecordGameCompleted(ctx, Completion{PlayerID: player.String(), GameID: "phishing", Score: 120}))
	_, err := store.AwardAchievement(ctx, player.String(), "phishing", achievement.FirstCorrect)
	require.NoError(t, err)

	mux := progressMux(NewHTTPHandlers(store, zerolog.Nop()))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/v1/progress", nil), player))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Summary      Summary `json:"summary"`
		Achievements []struct {
			AchievementID string `json:"achievement_id"`
			GameID        string `json:"game_id"`
			Title         string `json:"title"`
		} `json:"achievements"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, Summary{GamesCompleted: 1, BadgesUnlocked: 1}, body.Summary)
	require.Len(t, body.Achievements, 1)
	assert.Equal(t, "first_correct", body.Achievements[0].AchievementID)
	assert.Equal(t, "phishing", body.Achievements[0].GameID)
	assert.NotEmpty(t, body.Achievements[0].Title)
}

func TestGetProgressRequiresClaims(t *testing.T) {
	mux := progressMux(NewHTTPHandlers(NewMemoryStore(), zerolog.Nop()))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCompleteQuizIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	player := uuid.New()
	mux := progressMux(NewHTTPHandlers(store, zerolog.Nop()))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/v1/progress/quizzes/passwords-101", nil), player))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	summary, err := store.AggregateProgress(context.Background(), player.String())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.QuizzesCompleted)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/v1/progress/quizzes/Bad%20Id", nil), player))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/v1/progress/quizzes/passwords-101", nil), player))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) RecordQuizCompleted(context.Context, string, string) error {
	return errors.New("disk full")
}

func (failingStore) AggregateProgress(context.Context, string) (Summary, error) {
	return Summary{}, errors.New("connection reset")
}

func TestStoreFailuresCarryProgressCodes(t *testing.T) {
	mux := progressMux(NewHTTPHandlers(failingStore{NewMemoryStore()}, zerolog.Nop()))
	player := uuid.New()

	cases := []struct {
		name   string
		method string
		path   string
		code   string
	}{
		{"fetch", http.MethodGet, "/v1/progress", httperrors.ErrCodeProgressFetchFailed},
		{"record", http.MethodPost, "/v1/progress/quizzes/quiz-1", httperrors.ErrCodeProgressRecordFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, authed(httptest.NewRequest(tc.method, tc.path, nil), player))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			var body httperrors.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.code, body.Error)
		})
	}
}
