package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken string

	// Database
	DatabasePath string

	// Sweeping
	SweepSchedule string

	// Timeout policy (hours); the short party-facing thresholds are fixed
	// business rules and not configurable.
	StewardResponseHours   int
	DiscussionTimeoutHours int
	ClosedRetentionHours   int

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:  os.Getenv("DISCORD_BOT_TOKEN"),
		DatabasePath:  getEnvOrDefault("DATABASE_PATH", "./data/bot.db"),
		SweepSchedule: getEnvOrDefault("SWEEP_SCHEDULE", "@every 5m"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.StewardResponseHours, err = getEnvHours("STEWARD_RESPONSE_HOURS", 48); err != nil {
		return nil, err
	}
	if cfg.DiscussionTimeoutHours, err = getEnvHours("DISCUSSION_TIMEOUT_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.ClosedRetentionHours, err = getEnvHours("CLOSED_RETENTION_HOURS", 48); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}

	return cfg, nil
}

func getEnvHours(key string, defaultValue int) (int, error) {
	raw := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return hours, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
