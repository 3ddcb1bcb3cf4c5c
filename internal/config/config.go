package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	DriverNone     = ""
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds runtime configuration.
type Config struct {
	HTTPAddr    string
	WorkerCount int
	RunnerShell string

	StorageDriver string
	PostgresDSN   string
	RedisURL      string

	RabbitURL   string
	RabbitQueue string
}

// Load reads configuration from environment variables, applying defaults
// where a value is optional.
func Load() (*Config, error) {
	workers, err := getEnvInt("WORKER_COUNT", 10)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		WorkerCount:   workers,
		RunnerShell:   getEnv("RUNNER_SHELL", "/bin/sh"),
		StorageDriver: os.Getenv("STORAGE_DRIVER"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		RedisURL:      os.Getenv("REDIS_URL"),
		RabbitURL:     os.Getenv("RABBITMQ_URL"),
		RabbitQueue:   getEnv("RABBITMQ_QUEUE", "snippetd.jobs"),
	}

	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("WORKER_COUNT must be at least 1, got %d", cfg.WorkerCount)
	}

	switch cfg.StorageDriver {
	case DriverNone:
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("STORAGE_DRIVER=postgres requires POSTGRES_DSN")
		}
	case DriverRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("STORAGE_DRIVER=redis requires REDIS_URL")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
