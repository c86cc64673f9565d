package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type AppConfig struct {
	APIBaseURL string

	// RedisURL switches identity persistence to Redis when set; otherwise
	// the token lives in PlayerIDFile.
	RedisURL     string
	PlayerIDFile string

	HTTPTimeoutSec int
	HTTPRetryMax   int

	// MessagesDir optionally overrides the embedded message catalog.
	MessagesDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPTimeoutSec: 10,
		HTTPRetryMax:   3,
	}

	cfg.APIBaseURL = strings.TrimSpace(os.Getenv("API_BASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.PlayerIDFile = strings.TrimSpace(os.Getenv("PLAYER_ID_FILE"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("HTTP_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPTimeoutSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_RETRY_MAX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPRetryMax = n
		}
	}

	if cfg.PlayerIDFile == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.PlayerIDFile = filepath.Join(home, ".ttt-cli", "player_id")
		} else {
			cfg.PlayerIDFile = filepath.Join(".", ".ttt-player-id")
		}
	}

	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_BASE_URL is required")
	}

	return cfg, nil
}
