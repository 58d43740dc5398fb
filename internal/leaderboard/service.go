package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/literacy-games/pkg/http/ws"
)

// Supported leaderboard windows.
const (
	WindowDaily   = "daily"
	WindowWeekly  = "weekly"
	WindowMonthly = "monthly"
	WindowAllTime = "all_time"
)

var defaultWindows = []string{WindowDaily, WindowWeekly, WindowMonthly, WindowAllTime}

// ErrUnknownWindow is returned for a window name outside defaultWindows.
var ErrUnknownWindow = errors.New("unknown leaderboard window")

// Entry represents a leaderboard record sent to clients.
type Entry struct {
	PlayerID    uuid.UUID `json:"player_id"`
	DisplayName string    `json:"display_name"`
	Score       int       `json:"score"`
	Games       int       `json:"games"`
	BestScore   int       `json:"best_score"`
}

// Result is one finished game to fold into the boards.
type Result struct {
	GameID      string
	PlayerID    uuid.UUID
	DisplayName string
	Score       int
	Windows     []string
}

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN             int
	PubSubChannel    string
	Windows          []string
	EntryTTL         time.Duration
	RedisKeyPrefix   string
	SnapshotTopLimit int
}

// Service keeps per-game score boards in Redis sorted sets and emits updates over Pub/Sub.
type Service struct {
	redis          *redis.Client
	logger         zerolog.Logger
	topN           int
	pubsubChannel  string
	windows        []string
	entryTTL       time.Duration
	prefix         string
	snapshotTopLim int
	now            func() time.Time
}

// bestScore keeps the highest single-game score in the meta hash.
var bestScore = redis.NewScript(`
local current = tonumber(redis.call("hget", KEYS[1], "best") or "0")
local score = tonumber(ARGV[1])
if score > current then
	redis.call("hset", KEYS[1], "best", score)
	return score
end
return current
`)

// NewService constructs a leaderboard service instance.
func NewService(redis *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	channel := opts.PubSubChannel
	if channel == "" {
		channel = "lb:updates"
	}
	windows := opts.Windows
	if len(windows) == 0 {
		windows = defaultWindows
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}
	snapTop := opts.SnapshotTopLimit
	if snapTop <= 0 {
		snapTop = 100
	}
	ttl := opts.EntryTTL
	if ttl <= 0 {
		ttl = 35 * 24 * time.Hour
	}

	return &Service{
		redis:          redis,
		logger:         logger.With().Str("component", "leaderboard").Logger(),
		topN:           topN,
		pubsubChannel:  channel,
		windows:        windows,
		entryTTL:       ttl,
		prefix:         prefix,
		snapshotTopLim: snapTop,
		now:            time.Now,
	}
}

// Channel is the Pub/Sub channel updates are published on.
func (s *Service) Channel() string { return s.pubsubChannel }

// RecordResult adds a finished game's score to every window of its game board.
func (s *Service) RecordResult(ctx context.Context, res Result) error {
	if res.GameID == "" || res.PlayerID == uuid.Nil {
		return fmt.Errorf("record result: game and player are required")
	}

	windows := res.Windows
	if len(windows) == 0 {
		windows = s.windows
	}

	now := s.now().UTC()
	for _, window := range windows {
		if err := s.updateWindow(ctx, res, window, now); err != nil {
			return err
		}
	}

	// Publish aggregate update for WebSocket consumers.
	go s.publishUpdate(context.Background(), res.GameID, windows)
	return nil
}

// Top retrieves the top entries of a game board for the current period of window.
func (s *Service) Top(ctx context.Context, gameID, window string, limit int) ([]Entry, error) {
	if !IsValidWindow(window) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWindow, window)
	}
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	zKey := s.leaderboardKey(gameID, window, s.now().UTC())
	results, err := s.redis.ZRevRangeWithScores(ctx, zKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		member, _ := z.Member.(string)
		meta, err := s.readMeta(ctx, zKey, member)
		if err != nil {
			s.logger.Warn().Err(err).Str("member", member).Msg("failed to read leaderboard metadata")
			continue
		}
		meta.Score = int(z.Score)
		entries = append(entries, *meta)
	}
	return entries, nil
}

// SnapshotTop returns the configured snapshot size for persistence jobs.
func (s *Service) SnapshotTop(ctx context.Context, gameID, window string) ([]Entry, error) {
	return s.Top(ctx, gameID, window, s.snapshotTopLim)
}

func (s *Service) updateWindow(ctx context.Context, res Result, window string, now time.Time) error {
	zKey := s.leaderboardKey(res.GameID, window, now)
	metaKey := s.metaKey(zKey, res.PlayerID)

	pipe := s.redis.TxPipeline()
	pipe.ZIncrBy(ctx, zKey, float64(res.Score), res.PlayerID.String())
	pipe.HIncrBy(ctx, metaKey, "games", 1)
	pipe.HSet(ctx, metaKey, map[string]interface{}{
		"display_name": res.DisplayName,
	})
	bestScore.Eval(ctx, pipe, []string{metaKey}, res.Score)
	if window != WindowAllTime {
		pipe.Expire(ctx, zKey, s.entryTTL)
		pipe.Expire(ctx, metaKey, s.entryTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update leaderboard %s/%s: %w", res.GameID, window, err)
	}
	return nil
}

func (s *Service) publishUpdate(ctx context.Context, gameID string, windows []string) {
	for _, window := range windows {
		entries, err := s.Top(ctx, gameID, window, 10)
		if err != nil {
			s.logger.Warn().Err(err).Str("game_id", gameID).Str("window", window).Msg("failed to collect leaderboard update")
			continue
		}
		if len(entries) == 0 {
			continue
		}

		payload := ws.LeaderboardUpdatePayload{
			GameID: gameID,
			Window: window,
			Top:    toWSEntries(entries),
		}
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to marshal leaderboard update")
			continue
		}
		if err := s.redis.Publish(ctx, s.pubsubChannel, data).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish leaderboard update")
		}
	}
}

func (s *Service) readMeta(ctx context.Context, zKey, member string) (*Entry, error) {
	playerID, err := uuid.Parse(member)
	if err != nil {
		return nil, fmt.Errorf("parse member %q: %w", member, err)
	}
	data, err := s.redis.HGetAll(ctx, s.metaKey(zKey, playerID)).Result()
	if err != nil {
		return nil, err
	}

	entry := &Entry{PlayerID: playerID}
	entry.DisplayName = data["display_name"]
	entry.Games = parseInt(data["games"])
	entry.BestScore = parseInt(data["best"])
	return entry, nil
}

func (s *Service) leaderboardKey(gameID, window string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, gameID, windowBucket(window, now))
}

func (s *Service) metaKey(zKey string, playerID uuid.UUID) string {
	return fmt.Sprintf("%s:meta:%s", zKey, playerID.String())
}

// windowBucket names the current period of a window so each day, week and
// month starts from an empty board.
func windowBucket(window string, now time.Time) string {
	switch window {
	case WindowDaily:
		return "daily:" + now.Format("2006-01-02")
	case WindowWeekly:
		year, week := now.ISOWeek()
		return fmt.Sprintf("weekly:%04d-W%02d", year, week)
	case WindowMonthly:
		return "monthly:" + now.Format("2006-01")
	default:
		return window
	}
}

// IsValidWindow reports whether window is a supported leaderboard window.
func IsValidWindow(window string) bool {
	switch window {
	case WindowDaily, WindowWeekly, WindowMonthly, WindowAllTime:
		return true
	default:
		return false
	}
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}
