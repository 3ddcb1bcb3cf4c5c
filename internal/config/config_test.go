package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_ADDR", "WORKER_COUNT", "RUNNER_SHELL",
		"STORAGE_DRIVER", "POSTGRES_DSN", "REDIS_URL",
		"RABBITMQ_URL", "RABBITMQ_QUEUE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10, cfg.WorkerCount)
	assert.Equal(t, "/bin/sh", cfg.RunnerShell)
	assert.Equal(t, DriverNone, cfg.StorageDriver)
	assert.Equal(t, "snippetd.jobs", cfg.RabbitQueue)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("WORKER_COUNT", "3")
	t.Setenv("RUNNER_SHELL", "/usr/bin/python3 -u")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, "/usr/bin/python3 -u", cfg.RunnerShell)
}

func TestLoad_InvalidWorkerCount(t *testing.T) {
	clearEnv(t)

	t.Setenv("WORKER_COUNT", "abc")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("WORKER_COUNT", "0")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_StorageDriverValidation(t *testing.T) {
	clearEnv(t)

	t.Setenv("STORAGE_DRIVER", "postgres")
	_, err := Load()
	assert.Error(t, err, "postgres driver without DSN")

	t.Setenv("POSTGRES_DSN", "host=localhost dbname=snippetd sslmode=disable")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)

	t.Setenv("STORAGE_DRIVER", "redis")
	_, err = Load()
	assert.Error(t, err, "redis driver without URL")

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.StorageDriver)

	t.Setenv("STORAGE_DRIVER", "cassandra")
	_, err = Load()
	assert.Error(t, err)
}
