package config

import (
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	IdentityBaseURL string
	IdentityToken   string

	// Matchmaking knobs.
	RatingWindow        int
	WaitEstimateSeconds int

	// Supported game types. Empty means any type is accepted.
	GameTypes []string

	MsgOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:          ":8090",
		RatingWindow:        200,
		WaitEstimateSeconds: 30,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.IdentityBaseURL = strings.TrimSpace(os.Getenv("IDENTITY_BASE_URL"))
	cfg.IdentityToken = strings.TrimSpace(os.Getenv("IDENTITY_TOKEN"))
	cfg.MsgOverrideDir = strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR"))

	if v := strings.TrimSpace(os.Getenv("RATING_WINDOW")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RatingWindow = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WAIT_ESTIMATE_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WaitEstimateSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GAME_TYPES")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.GameTypes = append(cfg.GameTypes, s)
			}
		}
	}

	return cfg, nil
}
