package server

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mguilba/quizrun/internal/auth"
	authjwt "github.com/mguilba/quizrun/internal/auth/jwt"
	"github.com/mguilba/quizrun/internal/bank"
	"github.com/mguilba/quizrun/internal/config"
	"github.com/mguilba/quizrun/internal/session"
)

// NewBankServer wires the question bank routes plus health and metrics.
func NewBankServer(cfg *config.Bank, logger zerolog.Logger, pool *pgxpool.Pool, handlers *bank.HTTPHandlers) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			logger.Error().Err(err).Msg("postgres ping failed")
			http.Error(w, `{"status":"degraded"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	// GET fetches a question by offset, POST records an answer.
	mux.HandleFunc("/quiz", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.GetQuestion(w, r)
		case http.MethodPost:
			handlers.SubmitAnswer(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/questions/count", handlers.CountQuestions)
	mux.HandleFunc("/user/score", handlers.GetScore)
	mux.HandleFunc("/add-question", handlers.AddQuestion)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}

// NewSessionServer wires the public auth routes and the token-protected quiz
// routes for the session service.
func NewSessionServer(
	cfg *config.Session,
	logger zerolog.Logger,
	redisClient *redis.Client,
	tokens *authjwt.Manager,
	authHandlers *auth.HTTPHandlers,
	quizHandlers *session.HTTPHandlers,
) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			logger.Error().Err(err).Msg("redis ping failed")
			http.Error(w, `{"status":"degraded"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/oauth/google/start", authHandlers.OAuthStart)
	mux.HandleFunc("/v1/oauth/google/callback", authHandlers.OAuthCallback)

	authenticate := auth.Middleware(tokens, logger)
	protected := func(h http.HandlerFunc) http.Handler {
		return authenticate(h)
	}

	mux.Handle("/v1/users/me", protected(authHandlers.GetMe))
	mux.Handle("/v1/auth/logout", protected(quizHandlers.Logout))

	mux.Handle("/v1/quiz/start", protected(quizHandlers.StartRun))
	mux.Handle("/v1/quiz/answer", protected(quizHandlers.SubmitAnswer))
	mux.Handle("/v1/quiz/current", protected(quizHandlers.CurrentQuestion))
	mux.Handle("/v1/quiz/score", protected(quizHandlers.GetScore))
	mux.Handle("/v1/quiz/questions", protected(quizHandlers.AddQuestion))

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}
