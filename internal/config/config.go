package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// HTTP
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:8501"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/massmailer.db"`

	// Delivery tracking (Gmail status polling)
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS" envDefault:"5"`
	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`

	// Scheduler
	SchedulerTick time.Duration `env:"SCHEDULER_TICK" envDefault:"1s"`

	// Google OAuth (Gmail sending)
	GoogleClientID     string   `env:"GOOGLE_CLIENT_ID,required"`
	GoogleClientSecret string   `env:"GOOGLE_CLIENT_SECRET,required"`
	GoogleRedirectURL  string   `env:"GOOGLE_REDIRECT_URL,required"`
	GoogleScopes       []string `env:"GOOGLE_SCOPES" envSeparator:"," envDefault:"https://www.googleapis.com/auth/userinfo.email,https://www.googleapis.com/auth/userinfo.profile,openid,https://www.googleapis.com/auth/gmail.modify"`

	// Microsoft OAuth (Outlook sending)
	OutlookClientID     string   `env:"OUTLOOK_CLIENT_ID,required"`
	OutlookClientSecret string   `env:"OUTLOOK_CLIENT_SECRET,required"`
	OutlookRedirectURL  string   `env:"OUTLOOK_REDIRECT_URL,required"`
	OutlookScopes       []string `env:"OUTLOOK_SCOPES" envSeparator:"," envDefault:"https://graph.microsoft.com/User.Read,https://graph.microsoft.com/Mail.Send,offline_access"`

	// Telegram notifications (optional)
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// TelegramEnabled returns true if the Telegram notifier is configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.PollMaxAttempts < 1 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1, got %d", cfg.PollMaxAttempts)
	}

	return cfg, nil
}
