package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{"defaults", func(*Config) {}, nil},
		{"port zero", func(c *Config) { c.port = 0 }, ErrInvalidPort},
		{"port too high", func(c *Config) { c.port = 70000 }, ErrInvalidPort},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, ErrTLSPair},
		{"key without cert", func(c *Config) { c.tlsKey = "key.pem" }, ErrTLSPair},
		{"zero read limit", func(c *Config) { c.maxMessageSize = 0 }, ErrNotPositive},
		{"zero send buffer", func(c *Config) { c.sendBuffer = 0 }, ErrNotPositive},
		{"zero ping interval", func(c *Config) { c.pingInterval = 0 }, ErrNotPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(cfg)

			err := cfg.validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestNewCmdDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.Equal(t, 3000, cfg.port)
	assert.Equal(t, int64(64*1024), cfg.maxMessageSize)
	assert.Equal(t, 64, cfg.sendBuffer)
	assert.Equal(t, 54*time.Second, cfg.pingInterval)
	assert.Empty(t, cfg.allowedOrigins)
	assert.NoError(t, cfg.validate())
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("PIXELROOM_PORT", "8123")
	t.Setenv("PIXELROOM_VERBOSE", "true")
	t.Setenv("PIXELROOM_PING_INTERVAL", "5s")
	t.Setenv("PIXELROOM_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, 8123, cfg.port)
	assert.True(t, cfg.verbose)
	assert.Equal(t, 5*time.Second, cfg.pingInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.allowedOrigins)
}

func TestNewCmdFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PIXELROOM_PORT", "8123")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--port", "9000", "--send_buffer", "8"}))

	assert.Equal(t, 9000, cfg.port)
	assert.Equal(t, 8, cfg.sendBuffer)
}

func TestNewCmdRejectsInvalidConfig(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	cmd.SetArgs([]string{"--port", "0"})

	err := cmd.Execute()
	assert.ErrorIs(t, err, ErrInvalidPort)
}
