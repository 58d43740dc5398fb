package progress

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
)

// RedisStore keeps progress in per-player Redis hashes and sets.
//
//	progress:{player}:achievements  hash  "{game}|{achievement}" -> earned unix millis
//	progress:{player}:games         hash  game -> completed play-throughs
//	progress:{player}:quizzes       set   quiz ids
type RedisStore struct {
	redis  *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedisStore wraps a Redis client. An empty prefix defaults to "progress".
func NewRedisStore(client *redis.Client, prefix string, logger zerolog.Logger) *RedisStore {
	if prefix == "" {
		prefix = "progress"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		logger: logger.With().Str("component", "progress_redis").Logger(),
	}
}

func (s *RedisStore) HasAchievement(ctx context.Context, playerID, gameID string, id achievement.ID) (bool, error) {
	ok, err := s.redis.HExists(ctx, s.achievementsKey(playerID), achievementField(gameID, id)).Result()
	if err != nil {
		return false, fmt.Errorf("check achievement: %w", err)
	}
	return ok, nil
}

// AwardAchievement relies on HSETNX so concurrent awards of the same id record exactly once.
func (s *RedisStore) AwardAchievement(ctx context.Context, playerID, gameID string, id achievement.ID) (bool, error) {
	now := time.Now().UTC().UnixMilli()
	created, err := s.redis.HSetNX(ctx, s.achievementsKey(playerID), achievementField(gameID, id), now).Result()
	if err != nil {
		return false, fmt.Errorf("award achievement: %w", err)
	}
	return created, nil
}

func (s *RedisStore) RecordGameCompleted(ctx context.Context, c Completion) error {
	if err := s.redis.HIncrBy(ctx, s.gamesKey(c.PlayerID), c.GameID, 1).Err(); err != nil {
		return fmt.Errorf("record game completion: %w", err)
	}
	return nil
}

func (s *RedisStore) RecordQuizCompleted(ctx context.Context, playerID, quizID string) error {
	if err := s.redis.SAdd(ctx, s.quizzesKey(playerID), quizID).Err(); err != nil {
		return fmt.Errorf("record quiz completion: %w", err)
	}
	return nil
}

func (s *RedisStore) AggregateProgress(ctx context.Context, playerID string) (Summary, error) {
	pipe := s.redis.Pipeline()
	games := pipe.HLen(ctx, s.gamesKey(playerID))
	quizzes := pipe.SCard(ctx, s.quizzesKey(playerID))
	badges := pipe.HLen(ctx, s.achievementsKey(playerID))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Summary{}, fmt.Errorf("aggregate progress: %w", err)
	}
	return Summary{
		GamesCompleted:   int(games.Val()),
		QuizzesCompleted: int(quizzes.Val()),
		BadgesUnlocked:   int(badges.Val()),
	}, nil
}

func (s *RedisStore) ListAchievements(ctx context.Context, playerID string) ([]Record, error) {
	raw, err := s.redis.HGetAll(ctx, s.achievementsKey(playerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	out := make([]Record, 0, len(raw))
	for field, val := range raw {
		gameID, id, ok := strings.Cut(field, "|")
		if !ok {
			s.logger.Warn().Str("field", field).Msg("skip malformed achievement field")
			continue
		}
		millis, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			s.logger.Warn().Err(err).Str("field", field).Msg("skip malformed achievement timestamp")
			continue
		}
		out = append(out, Record{
			AchievementID: achievement.ID(id),
			GameID:        gameID,
			EarnedAt:      time.UnixMilli(millis).UTC(),
		})
	}
	sortRecords(out)
	return out, nil
}

// Close is a no-op; the client is owned by the application.
func (s *RedisStore) Close() error { return nil }

func (s *RedisStore) achievementsKey(playerID string) string {
	return fmt.Sprintf("%s:%s:achievements", s.prefix, playerID)
}

func (s *RedisStore) gamesKey(playerID string) string {
	return fmt.Sprintf("%s:%s:games", s.prefix, playerID)
}

func (s *RedisStore) quizzesKey(playerID string) string {
	return fmt.Sprintf("%s:%s:quizzes", s.prefix, playerID)
}

func achievementField(gameID string, id achievement.ID) string {
	return gameID + "|" + string(id)
}
