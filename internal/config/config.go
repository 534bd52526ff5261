package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr    string
	APIListenAddr string

	RedisURL    string
	DatabaseURL string

	AuthSecret string

	PresenceTimeout time.Duration
	PresenceGrace   time.Duration
	GameTTL         time.Duration
	ChallengeTTL    time.Duration

	MsgTemplateDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":8080",
		APIListenAddr:   ":8081",
		PresenceTimeout: 3 * time.Minute,
		PresenceGrace:   time.Second,
		GameTTL:         24 * time.Hour,
		ChallengeTTL:    7 * 24 * time.Hour,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("API_LISTEN_ADDR")); v != "" {
		cfg.APIListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.AuthSecret = strings.TrimSpace(os.Getenv("AUTH_SECRET"))
	cfg.MsgTemplateDir = strings.TrimSpace(os.Getenv("MSG_TEMPLATE_DIR"))

	if v := strings.TrimSpace(os.Getenv("PRESENCE_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PresenceTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("PRESENCE_GRACE")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PresenceGrace = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("GAME_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.GameTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHALLENGE_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ChallengeTTL = d
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.AuthSecret == "" {
		return nil, errors.New("AUTH_SECRET is required")
	}

	return cfg, nil
}
