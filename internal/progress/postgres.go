package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists progress in Postgres (schema in db/migrations).
type PostgresStore struct {
	db    pgQuerier
	close func()
}

// NewPostgresStore wraps a pgx pool or connection. closeFn may be nil.
func NewPostgresStore(db pgQuerier, closeFn func()) *PostgresStore {
	return &PostgresStore{db: db, close: closeFn}
}

const (
	pgHasAchievement = `SELECT EXISTS (
	SELECT 1 FROM player_achievements WHERE player_id = $1 AND game_id = $2 AND achievement_id = $3)`

	pgAwardAchievement = `INSERT INTO player_achievements (player_id, game_id, achievement_id, earned_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (player_id, game_id, achievement_id) DO NOTHING`

	pgInsertCompletion = `INSERT INTO game_completions (player_id, game_id, score, level, rounds, finished_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	pgInsertQuiz = `INSERT INTO quiz_completions (player_id, quiz_id, completed_at)
VALUES ($1, $2, $3)
ON CONFLICT (player_id, quiz_id) DO NOTHING`

	pgAggregate = `SELECT
	(SELECT COUNT(DISTINCT game_id) FROM game_completions WHERE player_id = $1),
	(SELECT COUNT(*) FROM quiz_completions WHERE player_id = $1),
	(SELECT COUNT(*) FROM player_achievements WHERE player_id = $1)`

	pgListAchievements = `SELECT achievement_id, game_id, earned_at
FROM player_achievements WHERE player_id = $1
ORDER BY earned_at, game_id, achievement_id`

	pgInsertSnapshot = `INSERT INTO leaderboard_snapshots (game_id, time_window, generated_at, entries, source_hash)
VALUES ($1, $2, $3, $4, $5)`

	pgLatestSnapshot = `SELECT generated_at, entries, source_hash
FROM leaderboard_snapshots WHERE game_id = $1 AND time_window = $2
ORDER BY generated_at DESC LIMIT 1`
)

func (s *PostgresStore) HasAchievement(ctx context.Context, playerID, gameID string, id achievement.ID) (bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, pgHasAchievement, playerID, gameID, string(id)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check achievement: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) AwardAchievement(ctx context.Context, playerID, gameID string, id achievement.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, pgAwardAchievement, playerID, gameID, string(id), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("award achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) RecordGameCompleted(ctx context.Context, c Completion) error {
	finished := c.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	if _, err := s.db.Exec(ctx, pgInsertCompletion, c.PlayerID, c.GameID, c.Score, c.Level, c.Rounds, finished); err != nil {
		return fmt.Errorf("record game completion: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordQuizCompleted(ctx context.Context, playerID, quizID string) error {
	if _, err := s.db.Exec(ctx, pgInsertQuiz, playerID, quizID, time.Now().UTC()); err != nil {
		return fmt.Errorf("record quiz completion: %w", err)
	}
	return nil
}

func (s *PostgresStore) AggregateProgress(ctx context.Context, playerID string) (Summary, error) {
	var games, quizzes, badges int64
	if err := s.db.QueryRow(ctx, pgAggregate, playerID).Scan(&games, &quizzes, &badges); err != nil {
		return Summary{}, fmt.Errorf("aggregate progress: %w", err)
	}
	return Summary{
		GamesCompleted:   int(games),
		QuizzesCompleted: int(quizzes),
		BadgesUnlocked:   int(badges),
	}, nil
}

func (s *PostgresStore) ListAchievements(ctx context.Context, playerID string) ([]Record, error) {
	rows, err := s.db.Query(ctx, pgListAchievements, playerID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec Record
			id  string
		)
		if err := rows.Scan(&id, &rec.GameID, &rec.EarnedAt); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		rec.AchievementID = achievement.ID(id)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertSnapshot(ctx context.Context, snap Snapshot) error {
	if _, err := s.db.Exec(ctx, pgInsertSnapshot, snap.GameID, snap.Window, snap.GeneratedAt, snap.Entries, snap.SourceHash); err != nil {
		return fmt.Errorf("insert leaderboard snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, gameID, window string) (Snapshot, error) {
	snap := Snapshot{GameID: gameID, Window: window}
	err := s.db.QueryRow(ctx, pgLatestSnapshot, gameID, window).Scan(&snap.GeneratedAt, &snap.Entries, &snap.SourceHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest leaderboard snapshot: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
