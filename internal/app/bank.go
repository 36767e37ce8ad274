package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mguilba/quizrun/internal/bank"
	"github.com/mguilba/quizrun/internal/config"
	"github.com/mguilba/quizrun/internal/db/repository"
	"github.com/mguilba/quizrun/internal/logging"
	"github.com/mguilba/quizrun/internal/server"
)

// Bank aggregates the question bank service's infrastructure.
type Bank struct {
	cfg    *config.Bank
	logger zerolog.Logger

	pool *pgxpool.Pool
	http *http.Server
}

// NewBank bootstraps logger, Postgres and the bank HTTP server.
func NewBank(ctx context.Context, cfg *config.Bank) (*Bank, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting bank bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	questionRepo := repository.NewQuestionRepository(pool)
	scoreRepo := repository.NewScoreRepository(pool)

	bankSvc := bank.NewService(questionRepo, scoreRepo, logger)
	handlers := bank.NewHTTPHandlers(bankSvc, logger)

	httpServer := server.NewBankServer(cfg, logger, pool, handlers)

	return &Bank{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		http:   httpServer,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Bank) Run(ctx context.Context) error {
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

	a.pool.Close()

	a.logger.Info().Msg("shutdown complete")
	return nil
}
