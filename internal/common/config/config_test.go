package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "notifications:events", cfg.Notifications.Stream)
	assert.False(t, cfg.Lifecycle.AutoSettle)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("LIFECYCLE_INTERVAL", "10s")
	t.Setenv("NOTIFY_QUEUE", "local")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 10*time.Second, cfg.Lifecycle.Interval)
	assert.Equal(t, "local", cfg.Notifications.Queue)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss", Database: "bb", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/bb?sslmode=disable", p.GetDSN())
}
