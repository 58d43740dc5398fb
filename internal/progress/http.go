package progress

import (
	"net/http"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/literacy-games/internal/auth"
	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
	httperrors "github.com/gokatarajesh/literacy-games/pkg/http/errors"
)

var quizIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// HTTPHandlers exposes the signed-in player's progress.
type HTTPHandlers struct {
	store  Store
	titles map[achievement.ID]achievement.Achievement
	logger zerolog.Logger
}

// NewHTTPHandlers creates progress endpoints over store.
func NewHTTPHandlers(store Store, logger zerolog.Logger) *HTTPHandlers {
	titles := make(map[achievement.ID]achievement.Achievement)
	for _, r := range achievement.DefaultRules() {
		titles[r.Achievement.ID] = r.Achievement
	}
	return &HTTPHandlers{
		store:  store,
		titles: titles,
		logger: logger.With().Str("component", "progress_http").Logger(),
	}
}

type earnedView struct {
	Record
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GetProgress handles GET /v1/progress.
func (h *HTTPHandlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w, http.MethodGet)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}
	playerID := claims.PlayerID.String()

	summary, err := h.store.AggregateProgress(r.Context(), playerID)
	if err != nil {
		h.logger.Error().Err(err).Str("player_id", playerID).Msg("aggregate progress failed")
		httperrors.RespondInternalError(w, httperrors.ErrCodeProgressFetchFailed, "Failed to load progress")
		return
	}
	records, err := h.store.ListAchievements(r.Context(), playerID)
	if err != nil {
		h.logger.Error().Err(err).Str("player_id", playerID).Msg("list achievements failed")
		httperrors.RespondInternalError(w, httperrors.ErrCodeProgressFetchFailed, "Failed to load achievements")
		return
	}

	earned := make([]earnedView, 0, len(records))
	for _, rec := range records {
		a := h.titles[rec.AchievementID]
		earned = append(earned, earnedView{Record: rec, Title: a.Title, Description: a.Description})
	}

	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"player_id":    playerID,
		"summary":      summary,
		"achievements": earned,
	})
}

// CompleteQuiz handles POST /v1/progress/quizzes/{quizID}. Repeats are no-ops.
func (h *HTTPHandlers) CompleteQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w, http.MethodPost)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	quizID := r.PathValue("quizID")
	if !quizIDPattern.MatchString(quizID) {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "Invalid quiz id", "quizID")
		return
	}

	playerID := claims.PlayerID.String()
	if err := h.store.RecordQuizCompleted(r.Context(), playerID, quizID); err != nil {
		h.logger.Error().Err(err).Str("player_id", playerID).Str("quiz_id", quizID).Msg("record quiz failed")
		httperrors.RespondInternalError(w, httperrors.ErrCodeProgressRecordFailed, "Failed to record quiz")
		return
	}

	summary, err := h.store.AggregateProgress(r.Context(), playerID)
	if err != nil {
		h.logger.Error().Err(err).Str("player_id", playerID).Msg("aggregate progress failed")
		httperrors.RespondInternalError(w, httperrors.ErrCodeProgressFetchFailed, "Failed to load progress")
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"quiz_id": quizID,
		"summary": summary,
	})
}
