package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/literacy-games/internal/progress"
	httperrors "github.com/gokatarajesh/literacy-games/pkg/http/errors"
	ws "github.com/gokatarajesh/literacy-games/pkg/http/ws"
)

// snapshotReader is the read side of progress.SnapshotStore.
type snapshotReader interface {
	LatestSnapshot(ctx context.Context, gameID, window string) (progress.Snapshot, error)
}

// HTTPHandler exposes REST endpoints for leaderboard queries.
type HTTPHandler struct {
	svc       topSource
	snapshots snapshotReader
	logger    zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler. Either source may be nil.
func NewHTTPHandler(svc topSource, snapshots snapshotReader, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:       svc,
		snapshots: snapshots,
		logger:    logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleGet responds with the current board of a game.
// Route: GET /v1/leaderboards/{game}/{window}?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w, http.MethodGet)
		return
	}

	gameID := r.PathValue("game")
	window := r.PathValue("window")
	if gameID == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeMissingField, "game is required")
		return
	}
	if !IsValidWindow(window) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownWindow, "unknown leaderboard window")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	ctx := r.Context()
	var (
		top    []ws.LeaderboardEntry
		source = "redis"
	)

	if h.svc != nil {
		if entries, err := h.svc.Top(ctx, gameID, window, limit); err == nil {
			top = toWSEntries(entries)
		} else {
			h.logger.Warn().Err(err).Str("game_id", gameID).Str("window", window).Msg("redis leaderboard fetch failed")
		}
	}

	if len(top) == 0 {
		source = "snapshot"
		top = h.snapshotFallback(ctx, gameID, window, limit)
	}
	if top == nil {
		top = []ws.LeaderboardEntry{}
	}

	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"game_id":     gameID,
		"window":      window,
		"top":         top,
		"source":      source,
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HTTPHandler) snapshotFallback(ctx context.Context, gameID, window string, limit int) []ws.LeaderboardEntry {
	if h.snapshots == nil {
		return nil
	}
	snap, err := h.snapshots.LatestSnapshot(ctx, gameID, window)
	if err != nil {
		if !errors.Is(err, progress.ErrNoSnapshot) {
			h.logger.Warn().Err(err).Str("game_id", gameID).Str("window", window).Msg("snapshot fetch failed")
		}
		return nil
	}

	var entries []ws.LeaderboardEntry
	if err := json.Unmarshal(snap.Entries, &entries); err != nil {
		h.logger.Warn().Err(err).Msg("snapshot payload decode failed")
		return nil
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
