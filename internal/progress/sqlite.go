package progress

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // driver: sqlite

	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// DefaultSQLiteDSN is used when no path is configured.
const DefaultSQLiteDSN = "file:literacy-games.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"

// SQLiteStore persists progress in a single-file SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenSQLite opens dsn with the pure-Go driver and applies the embedded migrations.
func OpenSQLite(ctx context.Context, dsn string, logger zerolog.Logger) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps :memory: databases alive and serialises writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger.With().Str("component", "progress_sqlite").Logger()}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(sqliteMigrations, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("sqlite migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("sqlite migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply sqlite migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Debug().Str("migration", r.Source.Path).Dur("took", r.Duration).Msg("migration applied")
	}
	return nil
}

func (s *SQLiteStore) HasAchievement(ctx context.Context, playerID, gameID string, id achievement.ID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM player_achievements WHERE player_id = ? AND game_id = ? AND achievement_id = ?`,
		playerID, gameID, string(id),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check achievement: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) AwardAchievement(ctx context.Context, playerID, gameID string, id achievement.ID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO player_achievements (player_id, game_id, achievement_id, earned_at)
VALUES (?, ?, ?, ?) ON CONFLICT (player_id, game_id, achievement_id) DO NOTHING`,
		playerID, gameID, string(id), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("award achievement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("award achievement: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) RecordGameCompleted(ctx context.Context, c Completion) error {
	finished := c.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_completions (player_id, game_id, score, level, rounds, finished_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.PlayerID, c.GameID, c.Score, c.Level, c.Rounds, finished.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record game completion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordQuizCompleted(ctx context.Context, playerID, quizID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_completions (player_id, quiz_id, completed_at) VALUES (?, ?, ?)
ON CONFLICT (player_id, quiz_id) DO NOTHING`,
		playerID, quizID, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record quiz completion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AggregateProgress(ctx context.Context, playerID string) (Summary, error) {
	var summary Summary
	err := s.db.QueryRowContext(ctx, `SELECT
	(SELECT COUNT(DISTINCT game_id) FROM game_completions WHERE player_id = ?),
	(SELECT COUNT(*) FROM quiz_completions WHERE player_id = ?),
	(SELECT COUNT(*) FROM player_achievements WHERE player_id = ?)`,
		playerID, playerID, playerID,
	).Scan(&summary.GamesCompleted, &summary.QuizzesCompleted, &summary.BadgesUnlocked)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate progress: %w", err)
	}
	return summary, nil
}

func (s *SQLiteStore) ListAchievements(ctx context.Context, playerID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT achievement_id, game_id, earned_at FROM player_achievements WHERE player_id = ?
ORDER BY earned_at, game_id, achievement_id`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			id     string
			game   string
			millis int64
		)
		if err := rows.Scan(&id, &game, &millis); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		out = append(out, Record{
			AchievementID: achievement.ID(id),
			GameID:        game,
			EarnedAt:      time.UnixMilli(millis).UTC(),
		})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leaderboard_snapshots (game_id, time_window, generated_at, entries, source_hash) VALUES (?, ?, ?, ?, ?)`,
		snap.GameID, snap.Window, snap.GeneratedAt.UnixMilli(), string(snap.Entries), snap.SourceHash,
	)
	if err != nil {
		return fmt.Errorf("insert leaderboard snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, gameID, window string) (Snapshot, error) {
	var (
		millis  int64
		entries string
	)
	snap := Snapshot{GameID: gameID, Window: window}
	err := s.db.QueryRowContext(ctx,
		`SELECT generated_at, entries, source_hash FROM leaderboard_snapshots
WHERE game_id = ? AND time_window = ? ORDER BY generated_at DESC, id DESC LIMIT 1`,
		gameID, window,
	).Scan(&millis, &entries, &snap.SourceHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest leaderboard snapshot: %w", err)
	}
	snap.GeneratedAt = time.UnixMilli(millis).UTC()
	snap.Entries = []byte(entries)
	return snap, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
