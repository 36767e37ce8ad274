package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Bank holds configuration for the question bank service.
type Bank struct {
	Name                    string        `env:"APP_NAME" envDefault:"quizrun-bank"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"BANK_HTTP_ADDR" envDefault:"0.0.0.0:8081"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres Postgres
}

// Session holds configuration for the quiz session service.
type Session struct {
	Name                    string        `env:"APP_NAME" envDefault:"quizrun-session"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"SESSION_HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Redis    Redis
	Security Security
	OAuth    OAuth
	Bank     Upstream
	Run      Run
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds the run-state store configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for token signing.
type Security struct {
	JWTSecret string        `env:"JWT_SECRET,notEmpty"`
	TokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
}

// OAuth holds Google OAuth provider configuration.
type OAuth struct {
	GoogleClientID     string `env:"GOOGLE_OAUTH_CLIENT_ID" envDefault:""`
	GoogleClientSecret string `env:"GOOGLE_OAUTH_CLIENT_SECRET" envDefault:""`
	GoogleRedirectURL  string `env:"GOOGLE_OAUTH_REDIRECT_URL" envDefault:""`
}

// Upstream points the session service at the question bank API.
type Upstream struct {
	BaseURL     string        `env:"BANK_BASE_URL" envDefault:"http://localhost:8081"`
	HTTPTimeout time.Duration `env:"BANK_HTTP_TIMEOUT" envDefault:"5s"`
}

// Run governs quiz run state lifetimes.
type Run struct {
	StateTTL time.Duration `env:"RUN_STATE_TTL" envDefault:"30m"`
	LockTTL  time.Duration `env:"RUN_LOCK_TTL" envDefault:"10s"`
}

// LoadBank parses environment variables into bank service config.
func LoadBank(ctx context.Context) (*Bank, error) {
	cfg := &Bank{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse bank config: %w", err)
	}
	return cfg, nil
}

// LoadSession parses environment variables into session service config.
func LoadSession(ctx context.Context) (*Session, error) {
	cfg := &Session{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse session config: %w", err)
	}
	return cfg, nil
}
