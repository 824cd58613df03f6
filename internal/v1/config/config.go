// Package config validates environment configuration before the server
// starts. The listen port arrives as a CLI flag and is not handled here.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultRoomBacklog bounds each room subscriber's backlog.
	DefaultRoomBacklog = 32
	// DefaultMailboxCap bounds each session's outbound mailbox.
	DefaultMailboxCap = 1024
)

// Config holds validated environment configuration.
type Config struct {
	GoEnv           string
	LogLevel        string
	DevelopmentMode bool
	AllowedOrigins  []string
	RoomBacklog     int
	MailboxCap      int
}

// ValidateEnv validates all environment variables and returns a Config.
// Every variable is optional with a sane default; an error means a set
// variable holds an unusable value.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var problems []string

	// Optional: GO_ENV (defaults to "production")
	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.DevelopmentMode = cfg.GoEnv == "development"

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("LOG_LEVEL must be one of debug, info, warn, error (got '%s')", cfg.LogLevel))
	}

	// Optional: ALLOWED_ORIGINS, comma-separated. Empty means any origin
	// is admitted, which is only sensible in development.
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	// Optional: ROOM_BACKLOG (defaults to 32)
	backlog, err := positiveIntEnv("ROOM_BACKLOG", DefaultRoomBacklog)
	if err != nil {
		problems = append(problems, err.Error())
	}
	cfg.RoomBacklog = backlog

	// Optional: MAILBOX_CAP (defaults to 1024)
	mailboxCap, err := positiveIntEnv("MAILBOX_CAP", DefaultMailboxCap)
	if err != nil {
		problems = append(problems, err.Error())
	}
	cfg.MailboxCap = mailboxCap

	if len(problems) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func positiveIntEnv(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return defaultValue, fmt.Errorf("%s must be a positive integer (got '%s')", key, raw)
	}
	return value, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"allowed_origins", strings.Join(cfg.AllowedOrigins, ","),
		"room_backlog", cfg.RoomBacklog,
		"mailbox_cap", cfg.MailboxCap,
	)
}
