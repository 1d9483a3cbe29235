package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "casino.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.Crash.BettingWindow)
	assert.Equal(t, 100*time.Millisecond, cfg.Crash.TickInterval)
	assert.Equal(t, 15*time.Second, cfg.Jackpot.Countdown)
	assert.Equal(t, 15*time.Second, cfg.Gateway.Connection.PingInterval)
	assert.Equal(t, "casino", cfg.Database.Database)
	assert.False(t, cfg.Database.Enabled)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
port: 9000
auth:
  dev_identity: true
crash:
  betting_window: 5s
  cooldown: 1s
jackpot:
  countdown: 30s
gateway:
  connection:
    allowed_origins: ["https://play.example.com"]
database:
  enabled: true
  host: db
`)
	t.Setenv("CRASH_COOLDOWN", "2s")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("WS_READ_TIMEOUT", "60s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Crash.BettingWindow)
	assert.Equal(t, 2*time.Second, cfg.Crash.Cooldown)
	assert.Equal(t, 100*time.Millisecond, cfg.Crash.TickInterval)
	assert.Equal(t, 30*time.Second, cfg.Jackpot.Countdown)
	assert.Equal(t, []string{"https://play.example.com"}, cfg.Gateway.Connection.AllowedOrigins)
	assert.Equal(t, 60*time.Second, cfg.Gateway.Connection.ReadTimeout)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "pg", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, "CASINO_DEPOSITS", cfg.NATS.StreamName)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeFile(t, "port: [nope"))
	assert.ErrorContains(t, err, "failed to parse config")

	t.Setenv("JWT_SECRET", "")
	_, err = Load("")
	assert.ErrorContains(t, err, "JWT_SECRET is required")
}

func TestValidate(t *testing.T) {
	base := Default()
	base.Auth.DevIdentity = true
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "port", mutate: func(c *Config) { c.Port = 0 }},
		{name: "betting window", mutate: func(c *Config) { c.Crash.BettingWindow = 0 }},
		{name: "tick", mutate: func(c *Config) { c.Crash.TickInterval = -time.Second }},
		{name: "countdown", mutate: func(c *Config) { c.Jackpot.Countdown = 0 }},
		{name: "closed ttl zero", mutate: func(c *Config) { c.Coinflip.ClosedTTL = 0 }},
		{name: "closed ttl negative", mutate: func(c *Config) { c.Coinflip.ClosedTTL = -time.Minute }},
		{name: "ping after read timeout", mutate: func(c *Config) { c.Gateway.Connection.PingInterval = time.Minute }},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.DevIdentity = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
