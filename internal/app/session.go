package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mguilba/quizrun/internal/auth"
	"github.com/mguilba/quizrun/internal/auth/jwt"
	"github.com/mguilba/quizrun/internal/bankclient"
	"github.com/mguilba/quizrun/internal/config"
	"github.com/mguilba/quizrun/internal/logging"
	"github.com/mguilba/quizrun/internal/server"
	"github.com/mguilba/quizrun/internal/session"
)

// Session aggregates the quiz session service's infrastructure.
type Session struct {
	cfg    *config.Session
	logger zerolog.Logger

	redis *redis.Client
	http  *http.Server
}

// NewSession bootstraps logger, Redis, the bank client and the session HTTP
// server.
func NewSession(ctx context.Context, cfg *config.Session) (*Session, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting session bootstrap")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	tokens := jwt.NewManager(jwt.Config{
		Secret: []byte(cfg.Security.JWTSecret),
		TTL:    cfg.Security.TokenTTL,
		Issuer: cfg.Name,
	})

	var oauthSvc *auth.OAuthService
	if cfg.OAuth.GoogleClientID != "" && cfg.OAuth.GoogleClientSecret != "" {
		redirectURL := cfg.OAuth.GoogleRedirectURL
		if redirectURL == "" {
			redirectURL = fmt.Sprintf("http://%s/v1/oauth/google/callback", cfg.HTTPAddr)
		}
		oauthSvc = auth.NewOAuthService(
			cfg.OAuth.GoogleClientID,
			cfg.OAuth.GoogleClientSecret,
			redirectURL,
			logger,
		)
		logger.Info().Msg("OAuth service initialized")
	} else {
		logger.Warn().Msg("OAuth not configured (missing GOOGLE_OAUTH_CLIENT_ID or GOOGLE_OAUTH_CLIENT_SECRET)")
	}
	authHandlers := auth.NewHTTPHandlers(oauthSvc, tokens, logger)

	bankAPI := bankclient.New(cfg.Bank.BaseURL, &http.Client{Timeout: cfg.Bank.HTTPTimeout})
	runStore := session.NewRedisRunStore(redisClient, logger, cfg.Run.StateTTL, cfg.Run.LockTTL)
	quizSvc := session.NewService(bankAPI, runStore, logger)
	quizHandlers := session.NewHTTPHandlers(quizSvc, logger)

	httpServer := server.NewSessionServer(cfg, logger, redisClient, tokens, authHandlers, quizHandlers)

	return &Session{
		cfg:    cfg,
		logger: logger,
		redis:  redisClient,
		http:   httpServer,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Session) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
