package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Client order feed
	FeedHost string
	FeedPort int

	// Venue endpoints
	VenueBaseURL string
	VenueWSURL   string
	VenueAPIKey  string

	// Session limits (trading window + throttle)
	SessionConfigPath string

	// Audit store
	AuditDBPath string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		FeedHost: envStr("ORDER_FEED_HOST", "0.0.0.0"),
		FeedPort: envInt("ORDER_FEED_PORT", 9443),

		VenueBaseURL: envStr("VENUE_BASE_URL", "https://api.exchange.example.com"),
		VenueWSURL:   envStr("VENUE_WS_URL", "wss://api.exchange.example.com/orders/ws"),
		VenueAPIKey:  envStr("VENUE_API_KEY", ""),

		SessionConfigPath: envStr("SESSION_CONFIG_PATH", "internal/config/session_limits.yaml"),

		AuditDBPath: envStr("AUDIT_DB_PATH", "data/ordergate_audit.db"),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
