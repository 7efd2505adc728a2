package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                     string
	DatabaseURL              string
	MigrationsURL            string
	PollInterval             time.Duration
	SeedLimit                int
	EventBuffer              int
	HubSendBuffer            int
	RateLimitPerMinute       int
	RateLimitBurst           int
	ViewerRateLimitPerMinute int
	ViewerRateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                     port,
		DatabaseURL:              os.Getenv("DB_DSN"),
		MigrationsURL:            os.Getenv("MIGRATIONS_URL"),
		PollInterval:             readDurationSeconds("POLL_INTERVAL_SECONDS", 5),
		SeedLimit:                readInt("SEED_LIMIT", 50),
		EventBuffer:              readInt("EVENT_BUFFER", 64),
		HubSendBuffer:            readInt("HUB_SEND_BUFFER", 16),
		RateLimitPerMinute:       readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:           readInt("RATE_LIMIT_BURST", 30),
		ViewerRateLimitPerMinute: readInt("VIEWER_RATE_LIMIT_PER_MIN", 600),
		ViewerRateLimitBurst:     readInt("VIEWER_RATE_LIMIT_BURST", 120),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
