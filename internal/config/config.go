package config

import (
	"os"
	"strings"
)

// Config holds the process settings, read from the environment (cmd/server
// loads .env first via godotenv).
type Config struct {
	Addr           string
	ShardIDs       []string
	AllowedOrigins []string
}

func Load() Config {
	cfg := Config{
		Addr:     getenv("ADDR", ":8080"),
		ShardIDs: splitList(getenv("SHARD_IDS", "A,B,C")),
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
