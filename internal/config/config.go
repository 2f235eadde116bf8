package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	ServerPort  string `env:"SERVER_PORT,default=8080"`
	StoreDriver string `env:"STORE_DRIVER,default=postgres"`

	DBHost     string `env:"DB_HOST,default=localhost"`
	DBPort     string `env:"DB_PORT,default=5432"`
	DBUser     string `env:"DB_USER,default=lounge"`
	DBPassword string `env:"DB_PASSWORD,default=lounge_dev_password"`
	DBName     string `env:"DB_NAME,default=lounge"`

	JWTSecret string        `env:"JWT_SECRET,default=dev-secret-change-me"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h"`

	LogLevel string `env:"LOG_LEVEL,default=info"`

	MaxMessageLength int `env:"MAX_MESSAGE_LENGTH,default=2000"`
	HistoryPageSize  int `env:"HISTORY_PAGE_SIZE,default=50"`

	// Realtime gateway
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=256"`
	MaxSendFailures int           `env:"MAX_SEND_FAILURES,default=3"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PingInterval    time.Duration `env:"PING_INTERVAL,default=30s"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("MAX_MESSAGE_LENGTH must be positive"))
	}
	if c.HistoryPageSize <= 0 || c.HistoryPageSize > 100 {
		errs = append(errs, errors.New("HISTORY_PAGE_SIZE must be between 1 and 100"))
	}
	if c.SendBufferSize <= 0 {
		errs = append(errs, errors.New("SEND_BUFFER_SIZE must be positive"))
	}
	if c.MaxSendFailures <= 0 {
		errs = append(errs, errors.New("MAX_SEND_FAILURES must be positive"))
	}
	if c.WriteTimeout <= 0 || c.PingInterval <= 0 {
		errs = append(errs, errors.New("WRITE_TIMEOUT and PING_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
