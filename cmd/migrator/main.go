package main

import (
	"database/sql"
	"flag"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/gokatarajesh/literacy-games/internal/config"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, or status")
		driver  = flag.String("driver", "postgres", "Target database: postgres or sqlite")
		dir     = flag.String("dir", "", "Directory containing migration files (default depends on driver)")
	)
	flag.Parse()

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("driver", *driver).Logger()

	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load("configs/.env")
	}

	var (
		sqlDriver string
		dsn       string
		dialect   string
		defDir    string
	)
	switch *driver {
	case "postgres":
		var pg config.Postgres
		if err := env.Parse(&pg); err != nil {
			log.Fatal().Err(err).Msg("failed to parse postgres config")
		}
		if !pg.Configured() {
			log.Fatal().Msg("PG_HOST, PG_USER and PG_DATABASE environment variables are required")
		}
		sqlDriver, dialect, defDir = "pgx", "postgres", "db/migrations"
		dsn = pg.DSN()
	case "sqlite":
		var progress config.Progress
		if err := env.Parse(&progress); err != nil {
			log.Fatal().Err(err).Msg("failed to parse progress config")
		}
		sqlDriver, dialect, defDir = "sqlite", "sqlite3", "internal/progress/migrations/sqlite"
		dsn = progress.SQLiteDSN
	default:
		log.Fatal().Msg("unknown driver. Use: postgres or sqlite")
	}

	if *dir == "" {
		*dir = defDir
	}
	migrationDir, err := filepath.Abs(*dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *dir).Msg("failed to resolve migration directory")
	}
	if _, err := os.Stat(migrationDir); os.IsNotExist(err) {
		log.Fatal().Str("dir", migrationDir).Msg("migration directory does not exist")
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database connection")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	log.Info().Str("migration_dir", migrationDir).Msg("connected to database")

	if err := goose.SetDialect(dialect); err != nil {
		log.Fatal().Err(err).Msg("failed to set goose dialect")
	}
	goose.SetBaseFS(nil)
	goose.SetTableName("goose_db_version")

	switch *command {
	case "up":
		if err := goose.Up(db, migrationDir); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations up")
		}
		log.Info().Msg("migrations applied successfully")

	case "down":
		if err := goose.Down(db, migrationDir); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations down")
		}
		log.Info().Msg("migrations rolled back successfully")

	case "status":
		if err := goose.Status(db, migrationDir); err != nil {
			log.Fatal().Err(err).Msg("failed to get migration status")
		}

	default:
		log.Fatal().Str("command", *command).Msg("unknown command. Use: up, down, or status")
	}
}
