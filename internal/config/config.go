// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// History backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	RedditClientID     string
	RedditClientSecret string
	RedditUsername     string
	RedditPassword     string
	RedditUserAgent    string

	TelegramBotToken string
	AllowedUsers     []int64
	NotifyChatID     int64

	DataDir        string
	HistoryBackend string
	HistoryPath    string
	DatabasePath   string
	RegistryPath   string
	TemplatesPath  string

	ReplyPacing       time.Duration
	RateLimitCooldown time.Duration
	RateLimitRetries  int

	StatusListen string
	LogLevel     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditUsername:     os.Getenv("REDDIT_USERNAME"),
		RedditPassword:     os.Getenv("REDDIT_PASSWORD"),
		RedditUserAgent:    os.Getenv("REDDIT_USER_AGENT"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		DataDir:            envOrDefault("DATA_DIR", "./data"),
		HistoryBackend:     strings.ToLower(envOrDefault("HISTORY_BACKEND", BackendJSON)),
		StatusListen:       envOrDefault("STATUS_LISTEN", ":8080"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
	}

	var missing []string
	for _, v := range []struct{ key, val string }{
		{"REDDIT_CLIENT_ID", cfg.RedditClientID},
		{"REDDIT_CLIENT_SECRET", cfg.RedditClientSecret},
		{"REDDIT_USERNAME", cfg.RedditUsername},
		{"REDDIT_PASSWORD", cfg.RedditPassword},
	} {
		if v.val == "" {
			missing = append(missing, v.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s required", strings.Join(missing, ", "))
	}

	if !slices.Contains([]string{BackendJSON, BackendSQLite}, cfg.HistoryBackend) {
		return nil, fmt.Errorf("invalid HISTORY_BACKEND %q: want %s or %s", cfg.HistoryBackend, BackendJSON, BackendSQLite)
	}

	cfg.HistoryPath = envOrDefault("HISTORY_PATH", filepath.Join(cfg.DataDir, "post_history.json"))
	cfg.DatabasePath = envOrDefault("DATABASE_PATH", filepath.Join(cfg.DataDir, "history.db"))
	cfg.RegistryPath = envOrDefault("REGISTRY_PATH", filepath.Join(cfg.DataDir, "subreddits.json"))
	cfg.TemplatesPath = envOrDefault("TEMPLATES_PATH", filepath.Join(cfg.DataDir, "templates.yaml"))

	var err error
	if cfg.ReplyPacing, err = durationEnv("REPLY_PACING", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimitCooldown, err = durationEnv("RATE_LIMIT_COOLDOWN", 10*time.Minute); err != nil {
		return nil, err
	}
	if raw := os.Getenv("RATE_LIMIT_RETRIES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RETRIES %q: want a non-negative integer", raw)
		}
		cfg.RateLimitRetries = n
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}
	if cfg.TelegramBotToken != "" && len(cfg.AllowedUsers) == 0 {
		return nil, errors.New("ALLOWED_USERS is required when TELEGRAM_BOT_TOKEN is set")
	}

	if raw := os.Getenv("NOTIFY_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_CHAT_ID %q: %w", raw, err)
		}
		cfg.NotifyChatID = id
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
func (c *Config) IsUserAllowed(userID int64) bool {
	return slices.Contains(c.AllowedUsers, userID)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q: want a duration such as 10s", key, raw)
	}
	return d, nil
}
