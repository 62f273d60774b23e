package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type Config struct {
	App struct {
		Port string
	}
	Postgres PostgresConfig
	Search   struct {
		Debounce  time.Duration
		PageLimit int
	}
	Draft struct {
		TTL time.Duration
	}
}

// Load reads configuration from the environment, optionally seeded from a
// .env file. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}
	cfg.App.Port = getEnv("APP_PORT", "8080")

	var err error
	if cfg.Postgres.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Postgres.Port, err = requireEnv("DB_PORT"); err != nil {
		return nil, err
	}
	if cfg.Postgres.User, err = requireEnv("DB_USER"); err != nil {
		return nil, err
	}
	if cfg.Postgres.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Postgres.DBName, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", "migrations")

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.MaxConns = int32(maxConns)

	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.MinConns = int32(minConns)

	lifetimeMin, err := getEnvInt("DB_MAX_CONN_LIFETIME_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.MaxConnLifetime = time.Duration(lifetimeMin) * time.Minute

	debounceMs, err := getEnvInt("SEARCH_DEBOUNCE_MS", 300)
	if err != nil {
		return nil, err
	}
	cfg.Search.Debounce = time.Duration(debounceMs) * time.Millisecond

	if cfg.Search.PageLimit, err = getEnvInt("SEARCH_PAGE_LIMIT", 20); err != nil {
		return nil, err
	}

	ttlMin, err := getEnvInt("DRAFT_TTL_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cfg.Draft.TTL = time.Duration(ttlMin) * time.Minute

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
