package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/massmailer/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_CLIENT_ID", "google-client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "google-secret")
	t.Setenv("GOOGLE_REDIRECT_URL", "http://localhost:8080/callback")
	t.Setenv("OUTLOOK_CLIENT_ID", "outlook-client")
	t.Setenv("OUTLOOK_CLIENT_SECRET", "outlook-secret")
	t.Setenv("OUTLOOK_REDIRECT_URL", "http://localhost:8080/outlook_callback")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, "./data/massmailer.db", cfg.DatabasePath)
		assert.Equal(t, 5, cfg.PollMaxAttempts)
		assert.Equal(t, 5*time.Second, cfg.PollInterval)
		assert.Equal(t, time.Second, cfg.SchedulerTick)
		assert.Contains(t, cfg.GoogleScopes, "https://www.googleapis.com/auth/gmail.modify")
		assert.Contains(t, cfg.OutlookScopes, "offline_access")
		assert.False(t, cfg.TelegramEnabled())
	})

	t.Run("missing required google credentials", func(t *testing.T) {
		setRequiredEnv(t)
		// t.Setenv registered the restore; unset so the variable is absent
		require.NoError(t, os.Unsetenv("GOOGLE_CLIENT_ID"))

		_, err := config.Load()
		require.Error(t, err)
	})

	t.Run("overrides", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("HTTP_ADDR", ":9090")
		t.Setenv("POLL_MAX_ATTEMPTS", "3")
		t.Setenv("POLL_INTERVAL", "100ms")

		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.HTTPAddr)
		assert.Equal(t, 3, cfg.PollMaxAttempts)
		assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	})

	t.Run("rejects zero poll attempts", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("POLL_MAX_ATTEMPTS", "0")

		_, err := config.Load()
		require.Error(t, err)
	})

	t.Run("telegram enabled only with token and chat", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

		cfg, err := config.Load()
		require.NoError(t, err)
		assert.False(t, cfg.TelegramEnabled())

		t.Setenv("TELEGRAM_CHAT_ID", "42")
		cfg, err = config.Load()
		require.NoError(t, err)
		assert.True(t, cfg.TelegramEnabled())
	})
}
