package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GO_ENV", "LOG_LEVEL", "ALLOWED_ORIGINS", "ROOM_BACKLOG", "MAILBOX_CAP"} {
		t.Setenv(key, "")
	}
}

func TestValidateEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := ValidateEnv()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.GoEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevelopmentMode)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, DefaultRoomBacklog, cfg.RoomBacklog)
	assert.Equal(t, DefaultMailboxCap, cfg.MailboxCap)
}

func TestValidateEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GO_ENV", "development")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("ROOM_BACKLOG", "64")
	t.Setenv("MAILBOX_CAP", "256")

	cfg, err := ValidateEnv()
	require.NoError(t, err)

	assert.True(t, cfg.DevelopmentMode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 64, cfg.RoomBacklog)
	assert.Equal(t, 256, cfg.MailboxCap)
}

func TestValidateEnvRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown log level", "LOG_LEVEL", "verbose"},
		{"non-numeric backlog", "ROOM_BACKLOG", "lots"},
		{"zero backlog", "ROOM_BACKLOG", "0"},
		{"negative mailbox cap", "MAILBOX_CAP", "-5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := ValidateEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}
