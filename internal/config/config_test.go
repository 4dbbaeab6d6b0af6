package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: "9090"
redis:
  addr: localhost:6379
  ttl: 24h
quiz:
  dir: /srv/quiz
  encoding: KOI8-R
  reset_correct_on_question: false
telegram:
  workers: 4
`

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	t.Setenv("REDIS_DB_HOST", "redis.internal")
	t.Setenv("REDIS_DB_PORT", "6380")
	t.Setenv("TG_BOT_TOKEN", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Telegram.Token)
	assert.Equal(t, "/srv/quiz", cfg.Quiz.Dir)
	assert.Equal(t, 4, cfg.Telegram.Workers)
	assert.False(t, cfg.ResetCorrectOnQuestion())
	assert.Equal(t, 24*time.Hour, TTLDuration(cfg.Redis.TTL, 0))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.ResetCorrectOnQuestion())
}

func TestTTLDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("garbage", time.Minute))
	assert.Equal(t, 5*time.Second, TTLDuration("5s", time.Minute))
}
