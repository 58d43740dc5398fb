package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/literacy-games/internal/auth"
	"github.com/gokatarajesh/literacy-games/internal/auth/jwt"
	"github.com/gokatarajesh/literacy-games/internal/config"
	"github.com/gokatarajesh/literacy-games/internal/content"
	"github.com/gokatarajesh/literacy-games/internal/leaderboard"
	"github.com/gokatarajesh/literacy-games/internal/logging"
	"github.com/gokatarajesh/literacy-games/internal/metrics"
	"github.com/gokatarajesh/literacy-games/internal/play"
	"github.com/gokatarajesh/literacy-games/internal/progress"
	"github.com/gokatarajesh/literacy-games/internal/server"
	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
	"github.com/gokatarajesh/literacy-games/internal/session/scoring"
	ws "github.com/gokatarajesh/literacy-games/pkg/http/ws"
)

// Application aggregates shared infrastructure (stores, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	progress progress.Store
	play     *play.Service
	http     *http.Server

	lbBroadcaster  *leaderboard.Broadcaster
	snapshotWorker *leaderboard.SnapshotWorker
	bgCancels      []context.CancelFunc
}

// New bootstraps logger, content, stores, Redis and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	loader := content.NewLoader(logger, cfg.Content.Seed)
	if err := loader.LoadFromDir(cfg.Content.Dir); err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	if len(loader.GameIDs()) == 0 {
		return nil, fmt.Errorf("no game catalogs found in %s", cfg.Content.Dir)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	var pool *pgxpool.Pool
	if cfg.Postgres.Configured() {
		var err error
		pool, err = pgxpool.New(ctx, cfg.Postgres.DSN())
		if err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
	}

	store, err := openProgressStore(ctx, cfg, pool, redisClient, logger)
	if err != nil {
		redisClient.Close()
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	authSvc := auth.NewService(jwt.TokenConfig{
		AccessSecret:  []byte(cfg.Security.JWTSecret),
		RefreshSecret: []byte(cfg.Security.JWTSecret + "_refresh"),
		AccessTTL:     cfg.Security.AccessTTL,
		RefreshTTL:    cfg.Security.RefreshTTL,
		Issuer:        cfg.Name,
	}, logger)

	leaderboardSvc := leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{
		TopN:             cfg.Leaderboard.TopN,
		PubSubChannel:    cfg.Leaderboard.Channel,
		EntryTTL:         cfg.Leaderboard.EntryTTL,
		RedisKeyPrefix:   cfg.Leaderboard.KeyPrefix,
		SnapshotTopLimit: cfg.Leaderboard.SnapshotTopN,
	})

	var registry play.Registry = play.NewLocalRegistry()
	if cfg.Session.Registry == "redis" {
		registry = play.NewRedisRegistry(redisClient, cfg.Session.RegistryTTL, logger)
	}

	wsHub := ws.NewHub(logger)
	playSvc := play.NewService(play.Deps{
		Content:  loader,
		Scorer:   scoring.NewEngine(scoringConfig(cfg.Scoring)),
		Progress: store,
		Recorder: leaderboardSvc,
		Registry: registry,
		Metrics:  metrics.NewPlay(nil),
	}, play.Config{
		Lives:         cfg.Game.Lives,
		MaxRounds:     cfg.Game.MaxRounds,
		RoundTime:     cfg.Game.RoundTime,
		MinRoundTime:  cfg.Game.MinRoundTime,
		LevelTimeStep: cfg.Game.LevelTimeStep,
		TickInterval:  cfg.Game.TickInterval,
		Thresholds: achievement.Thresholds{
			SpeedRunRatio:  cfg.Game.SpeedRunRatio,
			ScoreThreshold: cfg.Game.ScoreThreshold,
			StreakTarget:   cfg.Game.StreakTarget,
		},
	}, logger)

	playHandler := play.NewHandler(playSvc, wsHub, authSvc, server.NewWSUpgrader(cfg.CORS.AllowedOrigins), logger)
	lbBroadcaster := leaderboard.NewBroadcaster(redisClient, wsHub, leaderboardSvc.Channel(), logger)

	// Snapshots need a SQL backend; the HTTP fallback reads the same table.
	var snapshots progress.SnapshotStore
	var snapshotWorker *leaderboard.SnapshotWorker
	if ss, ok := store.(progress.SnapshotStore); ok {
		snapshots = ss
		if interval := cfg.Leaderboard.SnapshotInterval; interval > 0 {
			snapshotWorker = leaderboard.NewSnapshotWorker(leaderboardSvc, ss, loader, interval, cfg.Leaderboard.SnapshotTopN, logger)
		}
	} else {
		logger.Info().Str("backend", cfg.Progress.Backend).Msg("leaderboard snapshots disabled for progress backend")
	}
	lbHTTPHandler := leaderboard.NewHTTPHandler(leaderboardSvc, snapshots, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, server.Routes{
		AuthService: authSvc,
		Auth:        auth.NewHTTPHandlers(authSvc, logger),
		Games:       loader,
		Progress:    progress.NewHTTPHandlers(store, logger),
		Leaderboard: lbHTTPHandler.HandleGet,
		PlayWS:      playHandler.HandleWebSocket,
	})

	logger.Info().
		Strs("games", loader.GameIDs()).
		Str("progress_backend", cfg.Progress.Backend).
		Str("session_registry", cfg.Session.Registry).
		Msg("application wired")

	return &Application{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		progress:       store,
		play:           playSvc,
		http:           apiServer,
		lbBroadcaster:  lbBroadcaster,
		snapshotWorker: snapshotWorker,
		bgCancels:      make([]context.CancelFunc, 0, 2),
	}, nil
}

func openProgressStore(ctx context.Context, cfg *config.App, pool *pgxpool.Pool, redisClient *redis.Client, logger zerolog.Logger) (progress.Store, error) {
	switch cfg.Progress.Backend {
	case config.BackendMemory:
		logger.Warn().Msg("progress kept in memory; it is lost on restart")
		return progress.NewMemoryStore(), nil
	case config.BackendRedis:
		return progress.NewRedisStore(redisClient, cfg.Progress.RedisPrefix, logger), nil
	case config.BackendPostgres:
		if pool == nil {
			return nil, errors.New("postgres progress backend selected without a postgres pool")
		}
		// the pool is closed by Application.Run
		return progress.NewPostgresStore(pool, nil), nil
	case config.BackendSQLite:
		store, err := progress.OpenSQLite(ctx, cfg.Progress.SQLiteDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite progress: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown progress backend %q", cfg.Progress.Backend)
	}
}

func scoringConfig(c config.Scoring) scoring.ScoringConfig {
	return scoring.ScoringConfig{
		BaseScore:    c.BaseScore,
		MaxTimeBonus: c.MaxTimeBonus,
		DifficultyBonus: map[content.Difficulty]int{
			content.DifficultyEasy:   c.BonusEasy,
			content.DifficultyMedium: c.BonusMedium,
			content.DifficultyHard:   c.BonusHard,
		},
		ConfigItemPoints:    c.ConfigItemPoints,
		PartialCreditFactor: c.PartialCreditFactor,
		IssuePoints:         c.IssuePoints,
		IssueMultiplier: map[content.Difficulty]float64{
			content.DifficultyEasy:   c.MultiplierEasy,
			content.DifficultyMedium: c.MultiplierMedium,
			content.DifficultyHard:   c.MultiplierHard,
		},
		MissPenalty: c.MissPenalty,
	}
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	a.shutdown()
	return runErr
}

func (a *Application) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	// hosted sessions release their registry claims before Redis goes away
	a.play.Close(shutdownCtx)

	for _, cancel := range a.bgCancels {
		cancel()
	}

	if err := a.progress.Close(); err != nil {
		a.logger.Error().Err(err).Msg("progress store shutdown error")
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.lbBroadcaster != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.lbBroadcaster.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("leaderboard broadcaster stopped")
			}
		}()
	}

	if a.snapshotWorker != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.snapshotWorker.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("leaderboard snapshot worker stopped")
			}
		}()
	}
}
