package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/literacy-games/internal/auth"
	"github.com/gokatarajesh/literacy-games/internal/config"
	"github.com/gokatarajesh/literacy-games/internal/content"
	"github.com/gokatarajesh/literacy-games/internal/logging"
	httperrors "github.com/gokatarajesh/literacy-games/pkg/http/errors"
)

// GameLister lists the loaded catalogs.
type GameLister interface {
	Games() []content.GameSummary
}

// Routes bundles the handlers mounted by NewHTTPServer. Nil handlers are skipped.
type Routes struct {
	AuthService *auth.Service
	Auth        *auth.HTTPHandlers
	Games       GameLister
	Progress    ProgressHandlers
	Leaderboard http.HandlerFunc
	PlayWS      http.HandlerFunc
}

// ProgressHandlers serves the player progress endpoints.
type ProgressHandlers interface {
	GetProgress(w http.ResponseWriter, r *http.Request)
	CompleteQuiz(w http.ResponseWriter, r *http.Request)
}

// NewWSUpgrader accepts websocket upgrades from the configured origins.
// Requests without an Origin header come from non-browser clients and pass.
func NewWSUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed["*"]; ok {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// NewHTTPServer wires health, metrics, REST and websocket routes.
// pool may be nil when no Postgres backend is configured.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, routes Routes) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httperrors.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pingDependencies(ctx, pool, redisClient); err != nil {
			reqLogger := logging.FromContext(r.Context())
			reqLogger.Error().Err(err).Msg("dependency ping failed")
			httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamError, "Upstream dependency unavailable")
			return
		}
		httperrors.RespondJSON(w, http.StatusOK, map[string]bool{"pong": true})
	})

	if routes.Auth != nil {
		mux.HandleFunc("/v1/players/guest", routes.Auth.CreateGuest)
		mux.HandleFunc("/v1/players/refresh", routes.Auth.RefreshToken)
		mux.Handle("GET /v1/players/me", authenticated(routes.AuthService, logger, http.HandlerFunc(routes.Auth.GetMe)))
	}

	if routes.Games != nil {
		mux.HandleFunc("GET /v1/games", func(w http.ResponseWriter, r *http.Request) {
			httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{"games": routes.Games.Games()})
		})
	}

	if routes.Progress != nil {
		mux.Handle("GET /v1/progress", authenticated(routes.AuthService, logger, http.HandlerFunc(routes.Progress.GetProgress)))
		mux.Handle("/v1/progress/quizzes/{quizID}", authenticated(routes.AuthService, logger, http.HandlerFunc(routes.Progress.CompleteQuiz)))
	}

	if routes.Leaderboard != nil {
		mux.HandleFunc("GET /v1/leaderboards/{game}/{window}", routes.Leaderboard)
	}

	if routes.PlayWS != nil {
		mux.HandleFunc("GET /ws/play", routes.PlayWS)
	}

	handler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	})(requestLogger(logger, mux))

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func authenticated(authSvc *auth.Service, logger zerolog.Logger, next http.Handler) http.Handler {
	return auth.AuthMiddleware(authSvc, logger)(auth.RequireAuth(next))
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redisClient *redis.Client) error {
	if pool != nil {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
	}
	if redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the hijacker for websocket upgrades.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestLogger carries a request-scoped logger in the context and logs
// every non-websocket request on completion.
func requestLogger(logger zerolog.Logger, next http.Handler) http.Handler {
	logger = logging.Component(logger, "http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logger.With().Str("method", r.Method).Str("path", r.URL.Path).Logger()
		ctx := logging.IntoContext(r.Context(), reqLogger)

		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		reqLogger.Debug().Int("status", rec.status).Dur("duration", time.Since(start)).Msg("request served")
	})
}
