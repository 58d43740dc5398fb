package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Progress backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"literacy-games"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Content     Content
	Progress    Progress
	Game        Game
	Scoring     Scoring
	Leaderboard Leaderboard
	Session     Session
	CORS        CORS
}

// Postgres captures connection info for the SQL database. It is only
// required by the postgres progress backend.
type Postgres struct {
	Host     string `env:"PG_HOST"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER"`
	Password string `env:"PG_PASSWORD"`
	Database string `env:"PG_DATABASE"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// Configured reports whether enough is set to open a pool.
func (p Postgres) Configured() bool {
	return p.Host != "" && p.User != "" && p.Database != ""
}

// DSN builds a pgx connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode, p.MaxConns)
}

// Redis holds leaderboard, registry and hot progress configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty" envDefault:"localhost:6379"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret  string        `env:"JWT_SECRET,notEmpty"`
	AccessTTL  time.Duration `env:"JWT_ACCESS_TTL" envDefault:"12h"`
	RefreshTTL time.Duration `env:"JWT_REFRESH_TTL" envDefault:"720h"`
}

// Content locates the game catalogs.
type Content struct {
	Dir  string `env:"CONTENT_DIR" envDefault:"content"`
	Seed int64  `env:"CONTENT_SEED" envDefault:"0"` // 0 seeds from the clock
}

// Progress selects the durable progress backend.
type Progress struct {
	Backend     string `env:"PROGRESS_BACKEND" envDefault:"redis"`
	SQLiteDSN   string `env:"PROGRESS_SQLITE_DSN" envDefault:"file:literacy-games.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"`
	RedisPrefix string `env:"PROGRESS_REDIS_PREFIX" envDefault:"progress"`
}

// Game groups the session defaults and achievement thresholds.
type Game struct {
	Lives          int           `env:"GAME_LIVES" envDefault:"3"`
	MaxRounds      int           `env:"GAME_MAX_ROUNDS" envDefault:"10"`
	RoundTime      time.Duration `env:"GAME_ROUND_TIME" envDefault:"30s"`
	MinRoundTime   time.Duration `env:"GAME_MIN_ROUND_TIME" envDefault:"10s"`
	LevelTimeStep  time.Duration `env:"GAME_LEVEL_TIME_STEP" envDefault:"5s"`
	TickInterval   time.Duration `env:"GAME_TICK_INTERVAL" envDefault:"1s"`
	SpeedRunRatio  float64       `env:"ACHIEVEMENT_SPEED_RUN_RATIO" envDefault:"0.75"`
	ScoreThreshold int           `env:"ACHIEVEMENT_SCORE_THRESHOLD" envDefault:"500"`
	StreakTarget   int           `env:"ACHIEVEMENT_STREAK_TARGET" envDefault:"5"`
}

// Scoring mirrors the scoring engine constants.
type Scoring struct {
	BaseScore           int     `env:"SCORE_BASE" envDefault:"100"`
	MaxTimeBonus        int     `env:"SCORE_MAX_TIME_BONUS" envDefault:"50"`
	BonusEasy           int     `env:"SCORE_BONUS_EASY" envDefault:"0"`
	BonusMedium         int     `env:"SCORE_BONUS_MEDIUM" envDefault:"5"`
	BonusHard           int     `env:"SCORE_BONUS_HARD" envDefault:"10"`
	ConfigItemPoints    int     `env:"SCORE_CONFIG_ITEM_POINTS" envDefault:"100"`
	PartialCreditFactor float64 `env:"SCORE_PARTIAL_CREDIT_FACTOR" envDefault:"1.0"`
	IssuePoints         int     `env:"SCORE_ISSUE_POINTS" envDefault:"20"`
	MultiplierEasy      float64 `env:"SCORE_ISSUE_MULTIPLIER_EASY" envDefault:"1.0"`
	MultiplierMedium    float64 `env:"SCORE_ISSUE_MULTIPLIER_MEDIUM" envDefault:"1.5"`
	MultiplierHard      float64 `env:"SCORE_ISSUE_MULTIPLIER_HARD" envDefault:"2.0"`
	MissPenalty         int     `env:"SCORE_MISS_PENALTY" envDefault:"5"`
}

// Leaderboard governs ranking windows, snapshotting and broadcast behavior.
type Leaderboard struct {
	TopN             int           `env:"LEADERBOARD_TOP_N" envDefault:"10"`
	EntryTTL         time.Duration `env:"LEADERBOARD_ENTRY_TTL" envDefault:"840h"`
	Channel          string        `env:"LEADERBOARD_CHANNEL" envDefault:"lb:updates"`
	KeyPrefix        string        `env:"LEADERBOARD_KEY_PREFIX" envDefault:"lb"`
	SnapshotInterval time.Duration `env:"LEADERBOARD_SNAPSHOT_INTERVAL" envDefault:"5m"`
	SnapshotTopN     int           `env:"LEADERBOARD_SNAPSHOT_TOP" envDefault:"50"`
}

// Session configures the one-session-per-player registry.
type Session struct {
	Registry    string        `env:"SESSION_REGISTRY" envDefault:"redis"` // redis or local
	RegistryTTL time.Duration `env:"SESSION_REGISTRY_TTL" envDefault:"30m"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field and backend-specific requirements.
func (c *App) Validate() error {
	var errs []error

	switch c.Progress.Backend {
	case BackendMemory, BackendRedis, BackendSQLite:
	case BackendPostgres:
		if !c.Postgres.Configured() {
			errs = append(errs, errors.New("postgres progress backend requires PG_HOST, PG_USER and PG_DATABASE"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PROGRESS_BACKEND %q", c.Progress.Backend))
	}
	if c.Progress.Backend == BackendSQLite && c.Progress.SQLiteDSN == "" {
		errs = append(errs, errors.New("sqlite progress backend requires PROGRESS_SQLITE_DSN"))
	}

	if c.Session.Registry != "redis" && c.Session.Registry != "local" {
		errs = append(errs, fmt.Errorf("unknown SESSION_REGISTRY %q", c.Session.Registry))
	}

	if c.Game.Lives <= 0 {
		errs = append(errs, errors.New("GAME_LIVES must be positive"))
	}
	if c.Game.MaxRounds < 0 {
		errs = append(errs, errors.New("GAME_MAX_ROUNDS must not be negative"))
	}
	if c.Game.MinRoundTime <= 0 || c.Game.RoundTime < c.Game.MinRoundTime {
		errs = append(errs, errors.New("GAME_ROUND_TIME must be at least GAME_MIN_ROUND_TIME, which must be positive"))
	}
	if c.Game.SpeedRunRatio <= 0 || c.Game.SpeedRunRatio > 1 {
		errs = append(errs, errors.New("ACHIEVEMENT_SPEED_RUN_RATIO must be in (0, 1]"))
	}
	if c.Scoring.PartialCreditFactor <= 0 || c.Scoring.PartialCreditFactor > 1 {
		errs = append(errs, errors.New("SCORE_PARTIAL_CREDIT_FACTOR must be in (0, 1]"))
	}
	if c.Leaderboard.TopN <= 0 {
		errs = append(errs, errors.New("LEADERBOARD_TOP_N must be positive"))
	}

	return errors.Join(errs...)
}
