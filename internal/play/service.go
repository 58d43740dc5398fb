package play

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/literacy-games/internal/content"
	"github.com/gokatarajesh/literacy-games/internal/leaderboard"
	"github.com/gokatarajesh/literacy-games/internal/metrics"
	"github.com/gokatarajesh/literacy-games/internal/progress"
	"github.com/gokatarajesh/literacy-games/internal/session"
	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
	"github.com/gokatarajesh/literacy-games/internal/session/scoring"
	ws "github.com/gokatarajesh/literacy-games/pkg/http/ws"
)

// ErrNoSession is returned for actions from a player with no hosted session.
var ErrNoSession = errors.New("no active session")

// Player identifies who is playing.
type Player struct {
	ID          uuid.UUID
	DisplayName string
}

// StartRequest selects a game and its per-session knobs.
type StartRequest struct {
	GameID     string
	Difficulty content.Difficulty
	MaxRounds  int
}

// ResultRecorder receives the final score of every finished game.
// leaderboard.Service is the production recorder.
type ResultRecorder interface {
	RecordResult(ctx context.Context, res leaderboard.Result) error
}

// Config holds the session defaults applied to every hosted game.
type Config struct {
	Lives         int
	MaxRounds     int
	RoundTime     time.Duration
	MinRoundTime  time.Duration
	LevelTimeStep time.Duration
	Thresholds    achievement.Thresholds
	TickInterval  time.Duration // default 1s
	RecordTimeout time.Duration // default 5s
	TouchEvery    int           // ticks between registry refreshes, default 60
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.RecordTimeout <= 0 {
		c.RecordTimeout = 5 * time.Second
	}
	if c.TouchEvery <= 0 {
		c.TouchEvery = 60
	}
	if c.Thresholds == (achievement.Thresholds{}) {
		c.Thresholds = achievement.DefaultThresholds()
	}
	return c
}

// Deps bundles the collaborators of the service. Recorder, Registry and
// Metrics may be nil.
type Deps struct {
	Content  content.Provider
	Scorer   *scoring.Engine
	Progress progress.Store
	Recorder ResultRecorder
	Registry Registry
	Metrics  *metrics.Play
}

// hosted is one live session. mu serialises the ticker and player actions.
type hosted struct {
	mu     sync.Mutex
	ctrl   *session.Controller
	player Player
	gameID string
	sink   Sink
	token  string
	cancel context.CancelFunc
	ticks  int
}

// Service hosts at most one session per player and drives its clock.
type Service struct {
	deps   Deps
	cfg    Config
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*hosted
}

// NewService creates a play service.
func NewService(deps Deps, cfg Config, logger zerolog.Logger) *Service {
	if deps.Registry == nil {
		deps.Registry = NewLocalRegistry()
	}
	if deps.Scorer == nil {
		deps.Scorer = scoring.NewEngine(scoring.DefaultScoringConfig())
	}
	return &Service{
		deps:     deps,
		cfg:      cfg.withDefaults(),
		logger:   logger.With().Str("component", "play").Logger(),
		sessions: make(map[uuid.UUID]*hosted),
	}
}

// Start hosts a new session for player and serves its first round. A session
// the player already has on this instance is abandoned first.
func (s *Service) Start(ctx context.Context, player Player, req StartRequest, sink Sink) (session.State, error) {
	if err := s.Leave(ctx, player.ID, nil); err != nil && !errors.Is(err, ErrNoSession) {
		return session.State{}, err
	}

	catalog, err := s.deps.Content.Catalog(ctx, req.GameID)
	if err != nil {
		return session.State{}, err
	}

	token, err := s.deps.Registry.Claim(ctx, player.ID, req.GameID)
	if err != nil {
		return session.State{}, err
	}

	opts := session.Options{
		GameID:        catalog.GameID(),
		PlayerID:      player.ID.String(),
		Lives:         s.cfg.Lives,
		MaxRounds:     s.cfg.MaxRounds,
		RoundTime:     s.cfg.RoundTime,
		MinRoundTime:  s.cfg.MinRoundTime,
		LevelTimeStep: s.cfg.LevelTimeStep,
		Difficulty:    req.Difficulty,
	}
	if req.MaxRounds > 0 {
		opts.MaxRounds = req.MaxRounds
	}

	logger := s.logger.With().Str("player_id", player.ID.String()).Str("game_id", opts.GameID).Logger()
	presenter := &wsPresenter{
		sink:    sink,
		gameID:  opts.GameID,
		metrics: s.deps.Metrics,
		logger:  logger,
	}

	var evaluator *achievement.Evaluator
	if s.deps.Progress != nil {
		evaluator = achievement.NewEvaluator(s.deps.Progress, achievement.DefaultRules(), s.cfg.Thresholds, logger)
	}

	ctrl := session.NewController(catalog, s.deps.Scorer, session.Hooks{
		Presenter:    presenter,
		Celebrator:   presenter,
		Achievements: evaluator,
	}, opts, logger)
	presenter.state = ctrl.State
	presenter.onGameOver = func(st session.State) { s.recordGame(player, st) }

	sessCtx, cancel := context.WithCancel(context.Background())
	h := &hosted{
		ctrl:   ctrl,
		player: player,
		gameID: opts.GameID,
		sink:   sink,
		token:  token,
		cancel: cancel,
	}

	s.mu.Lock()
	s.sessions[player.ID] = h
	s.mu.Unlock()
	if s.deps.Metrics != nil {
		s.deps.Metrics.ActiveSessions.Inc()
	}

	effective := ctrl.Options()
	presenter.send(ws.TypeSessionStarted, ws.SessionStartedPayload{
		GameID:     effective.GameID,
		Title:      catalog.Title(),
		Lives:      effective.Lives,
		MaxRounds:  effective.MaxRounds,
		Difficulty: string(effective.Difficulty),
	})

	h.mu.Lock()
	err = ctrl.Start()
	state := ctrl.State()
	h.mu.Unlock()
	if err != nil {
		s.end(ctx, player.ID, h)
		return session.State{}, fmt.Errorf("start session: %w", err)
	}

	go s.run(sessCtx, h)
	logger.Info().Str("difficulty", string(effective.Difficulty)).Msg("session hosted")
	return state, nil
}

// Do runs fn against the player's controller under the session lock.
func (s *Service) Do(ctx context.Context, playerID uuid.UUID, fn func(ctx context.Context, c *session.Controller) error) error {
	h, ok := s.lookup(playerID)
	if !ok {
		return ErrNoSession
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(ctx, h.ctrl)
}

// Probe checks an issue on the player's discovery item and counts misses.
func (s *Service) Probe(ctx context.Context, playerID uuid.UUID, issueID string) (bool, error) {
	var hit bool
	err := s.Do(ctx, playerID, func(ctx context.Context, c *session.Controller) error {
		var err error
		hit, err = c.Probe(ctx, issueID)
		if err == nil && !hit && s.deps.Metrics != nil {
			s.deps.Metrics.DiscoveryMisses.WithLabelValues(c.Options().GameID).Inc()
		}
		return err
	})
	return hit, err
}

// State returns the snapshot of the player's session.
func (s *Service) State(playerID uuid.UUID) (session.State, bool) {
	h, ok := s.lookup(playerID)
	if !ok {
		return session.State{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctrl.State(), true
}

// Leave abandons the player's session. With a non-nil sink only a session
// bound to that sink is ended, so a stale connection cannot end a newer one.
func (s *Service) Leave(ctx context.Context, playerID uuid.UUID, sink Sink) error {
	h, ok := s.lookup(playerID)
	if !ok {
		return ErrNoSession
	}
	if sink != nil && h.sink != sink {
		return ErrNoSession
	}
	s.end(ctx, playerID, h)
	return nil
}

// Active returns the number of hosted sessions.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close abandons every hosted session.
func (s *Service) Close(ctx context.Context) {
	s.mu.Lock()
	all := make(map[uuid.UUID]*hosted, len(s.sessions))
	for id, h := range s.sessions {
		all[id] = h
	}
	s.mu.Unlock()

	for id, h := range all {
		s.end(ctx, id, h)
	}
}

func (s *Service) lookup(playerID uuid.UUID) (*hosted, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[playerID]
	return h, ok
}

func (s *Service) end(ctx context.Context, playerID uuid.UUID, h *hosted) {
	s.mu.Lock()
	if s.sessions[playerID] != h {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, playerID)
	s.mu.Unlock()

	h.cancel()
	if err := s.deps.Registry.Release(ctx, playerID, h.token); err != nil {
		s.logger.Warn().Err(err).Str("player_id", playerID.String()).Msg("release session claim failed")
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ActiveSessions.Dec()
	}
	s.logger.Info().Str("player_id", playerID.String()).Str("game_id", h.gameID).Msg("session ended")
}

// run drives the round clock until the session ends.
func (s *Service) run(ctx context.Context, h *hosted) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, h)
		}
	}
}

func (s *Service) tick(ctx context.Context, h *hosted) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ticks++
	if h.ticks%s.cfg.TouchEvery == 0 {
		if err := s.deps.Registry.Touch(ctx, h.player.ID, h.token); err != nil {
			s.logger.Warn().Err(err).Str("player_id", h.player.ID.String()).Msg("session claim refresh failed")
		}
	}

	if h.ctrl.Status() != session.StatusPlaying {
		return
	}
	if err := h.ctrl.Tick(ctx); err != nil {
		s.logger.Error().Err(err).Str("player_id", h.player.ID.String()).Msg("round tick failed")
	}
}

// recordGame persists a finished game. It runs inside the controller's game
// over callback, so it is bounded by RecordTimeout.
func (s *Service) recordGame(player Player, st session.State) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RecordTimeout)
	defer cancel()

	logger := s.logger.With().Str("player_id", player.ID.String()).Str("game_id", st.GameID).Logger()

	if s.deps.Progress != nil {
		err := s.deps.Progress.RecordGameCompleted(ctx, progress.Completion{
			PlayerID:   player.ID.String(),
			GameID:     st.GameID,
			Score:      st.Score,
			Level:      st.Level,
			Rounds:     st.RoundIndex,
			FinishedAt: time.Now().UTC(),
		})
		if err != nil {
			logger.Error().Err(err).Msg("record game completion failed")
		}
	}

	if s.deps.Recorder != nil {
		err := s.deps.Recorder.RecordResult(ctx, leaderboard.Result{
			GameID:      st.GameID,
			PlayerID:    player.ID,
			DisplayName: player.DisplayName,
			Score:       st.Score,
		})
		if err != nil {
			logger.Error().Err(err).Msg("record leaderboard result failed")
		}
	}

	logger.Info().Int("score", st.Score).Int("rounds", st.RoundIndex).Msg("game recorded")
}
