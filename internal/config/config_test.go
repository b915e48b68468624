package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_HOST", "APP_PORT", "KAFKA_BROKERS", "DESK_TIMEOUT_SECONDS", "CATALOG_CACHE_TTL_SECONDS", "REDIS_DB"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, 30*time.Second, cfg.Catalog.CacheTTL())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("DESK_TIMEOUT_SECONDS", "3")
	t.Setenv("CATALOG_CACHE_TTL_SECONDS", "0")
	t.Setenv("POSTGRES_MAX_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, time.Duration(0), cfg.Catalog.CacheTTL())
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")
	_, err := Load()
	assert.Error(t, err)
}
