package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "STORE_DRIVER", "REDIS_URL", "DATABASE_URL", "SQLITE_PATH",
		"FANOUT", "SYNC_INTERVAL", "HOST_GRACE", "PARTY_TTL", "LOG_FILE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "none", cfg.StoreDriver)
	assert.Equal(t, "parties.db", cfg.SQLitePath)
	assert.Equal(t, FanoutLocal, cfg.Fanout)
	assert.Equal(t, 5*time.Second, cfg.SyncInterval)
	assert.Equal(t, 120*time.Second, cfg.HostGrace)
	assert.Equal(t, 24*time.Hour, cfg.PartyTTL)
	assert.Empty(t, cfg.LogFile)
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("FANOUT", "redis")
	t.Setenv("HOST_GRACE", "30s")
	t.Setenv("SYNC_INTERVAL", "250ms")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, FanoutRedis, cfg.Fanout)
	assert.Equal(t, 30*time.Second, cfg.HostGrace)
	assert.Equal(t, 250*time.Millisecond, cfg.SyncInterval)
}

func TestLoadAddrFlag(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")

	cfg, err := Load([]string{"-addr", "127.0.0.1:9000"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad duration", "PARTY_TTL", "soon"},
		{"negative duration", "HOST_GRACE", "-1s"},
		{"bad fanout", "FANOUT", "kafka"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load(nil)
			assert.Error(t, err)
		})
	}
}
