package leaderboard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/literacy-games/internal/progress"
)

// topSource reads the live board of a game.
type topSource interface {
	Top(ctx context.Context, gameID, window string, limit int) ([]Entry, error)
}

// GameLister names the games that have boards.
type GameLister interface {
	GameIDs() []string
}

// SnapshotWorker periodically persists the Redis boards into the durable
// progress store, so reads survive a Redis flush.
type SnapshotWorker struct {
	svc      topSource
	store    progress.SnapshotStore
	games    GameLister
	logger   zerolog.Logger
	interval time.Duration
	topN     int
	now      func() time.Time
}

func NewSnapshotWorker(svc topSource, store progress.SnapshotStore, games GameLister, interval time.Duration, topN int, logger zerolog.Logger) *SnapshotWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if topN <= 0 {
		topN = 50
	}
	return &SnapshotWorker{
		svc:      svc,
		store:    store,
		games:    games,
		logger:   logger.With().Str("component", "leaderboard_snapshot_worker").Logger(),
		interval: interval,
		topN:     topN,
		now:      time.Now,
	}
}

// Run blocks until context cancellation.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	if w.svc == nil || w.store == nil || w.games == nil {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// run immediately
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SnapshotWorker) tick(ctx context.Context) {
	for _, gameID := range w.games.GameIDs() {
		for _, window := range defaultWindows {
			if err := w.snapshotWindow(ctx, gameID, window); err != nil {
				w.logger.Warn().Err(err).Str("game_id", gameID).Str("window", window).Msg("snapshot failed")
			}
		}
	}
}

func (w *SnapshotWorker) snapshotWindow(ctx context.Context, gameID, window string) error {
	entries, err := w.svc.Top(ctx, gameID, window, w.topN)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	wsEntries := toWSEntries(entries)
	data, err := json.Marshal(wsEntries)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	sourceHash := sha256.Sum256(data)
	now := w.now().UTC()

	snap := progress.Snapshot{
		GameID:      gameID,
		Window:      window,
		GeneratedAt: now,
		Entries:     data,
		SourceHash:  hex.EncodeToString(sourceHash[:]),
	}

	if err := w.store.InsertSnapshot(ctx, snap); err != nil {
		return err
	}

	w.logger.Info().
		Str("game_id", gameID).
		Str("window", window).
		Int("entries", len(wsEntries)).
		Time("generated_at", now).
		Msg("leaderboard snapshot persisted")

	return nil
}
