package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SESSION_DRIVER", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "redis", cfg.Session.Driver)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
	assert.Equal(t, "tackle-shop", cfg.Tracing.ServiceName)
	assert.Empty(t, cfg.Tracing.Endpoint)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("SESSION_DRIVER", "memory")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4317")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)
}

func TestLoadRejectsUnknownDrivers(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	assert.Error(t, err)
}
