package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "localhost", cfg.Database.Host)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, "worksafe", cfg.Database.Database)
	require.Equal(t, "disable", cfg.Database.SSLMode)
	require.Equal(t, 20, cfg.Database.MaxConns)

	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)

	require.Equal(t, 5*time.Minute, cfg.Insights.ThresholdCacheTTL)
	require.Equal(t, 10*time.Minute, cfg.Insights.LibraryNameCacheTTL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "15432")
	t.Setenv("DB_NAME", "insights_test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("THRESHOLD_CACHE_TTL", "30s")

	cfg := Load()
	require.Equal(t, "db.internal", cfg.Database.Host)
	require.Equal(t, 15432, cfg.Database.Port)
	require.Equal(t, "insights_test", cfg.Database.Database)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 30*time.Second, cfg.Insights.ThresholdCacheTTL)
}

func TestLoadBadValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("THRESHOLD_CACHE_TTL", "soon")

	cfg := Load()
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, 5*time.Minute, cfg.Insights.ThresholdCacheTTL)
}

func TestGetDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "localhost", Port: 5432,
		User: "postgres", Password: "secret",
		Database: "worksafe", SSLMode: "disable",
	}
	require.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=worksafe sslmode=disable",
		c.GetDSN())
}
