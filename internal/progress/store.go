package progress

import (
	"context"
	"errors"
	"time"

	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
)

// ErrNoSnapshot is returned when no leaderboard snapshot has been persisted yet.
var ErrNoSnapshot = errors.New("progress: no leaderboard snapshot")

// Summary is the aggregate progress shown on a player's dashboard.
type Summary struct {
	GamesCompleted   int `json:"games_completed"`
	QuizzesCompleted int `json:"quizzes_completed"`
	BadgesUnlocked   int `json:"badges_unlocked"`
}

// Record is one earned achievement.
type Record struct {
	AchievementID achievement.ID `json:"achievement_id"`
	GameID        string         `json:"game_id"`
	EarnedAt      time.Time      `json:"earned_at"`
}

// Completion describes a finished play-through.
type Completion struct {
	PlayerID   string
	GameID     string
	Score      int
	Level      int
	Rounds     int
	FinishedAt time.Time
}

// Snapshot is a persisted copy of a leaderboard window.
type Snapshot struct {
	GameID      string
	Window      string
	GeneratedAt time.Time
	Entries     []byte
	SourceHash  string
}

// Store is the durable progress collaborator. Achievement awarding is idempotent.
type Store interface {
	achievement.Store

	RecordGameCompleted(ctx context.Context, c Completion) error
	RecordQuizCompleted(ctx context.Context, playerID, quizID string) error
	AggregateProgress(ctx context.Context, playerID string) (Summary, error)
	ListAchievements(ctx context.Context, playerID string) ([]Record, error)
	Close() error
}

// SnapshotStore persists leaderboard snapshots. Only the SQL backends implement it.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, s Snapshot) error
	LatestSnapshot(ctx context.Context, gameID, window string) (Snapshot, error)
}
