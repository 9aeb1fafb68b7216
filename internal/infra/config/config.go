package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"

	"elapsed_tracker/internal/domain/elapsed"
)

const (
	GranularitySecond = "second"
	GranularityMinute = "minute"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	LogLevel           string
	Environment        string
	Epoch              time.Time
	DisplayGranularity string
	TickSpec           string // Cron spec for the display/notification tick
	NotifyTimeout      time.Duration
	NotificationTitle  string
	DatabaseURL        string
	HTTPAddr           string
	TelegramToken      string // Optional; enables the bot and Telegram notifications
	TelegramChatID     int64
	PhotoAPIURL        string // Optional; remote photo backend for the gallery
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	epochStr := os.Getenv("EPOCH")
	if epochStr == "" {
		epochStr = elapsed.DefaultEpoch
	}
	cfg.Epoch, err = elapsed.ParseEpoch(epochStr)
	if err != nil {
		return nil, fmt.Errorf("invalid EPOCH: %w", err)
	}

	cfg.DisplayGranularity = strings.ToLower(os.Getenv("DISPLAY_GRANULARITY"))
	if cfg.DisplayGranularity == "" {
		cfg.DisplayGranularity = GranularityMinute
	}
	cfg.TickSpec = os.Getenv("TICK_SPEC")
	if cfg.TickSpec == "" {
		cfg.TickSpec, err = TickSpecFor(cfg.DisplayGranularity)
		if err != nil {
			return nil, err
		}
	}

	cfg.NotifyTimeout = 30 * time.Second
	if v := os.Getenv("NOTIFY_TIMEOUT"); v != "" {
		cfg.NotifyTimeout, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_TIMEOUT: %w", err)
		}
	}

	cfg.NotificationTitle = os.Getenv("NOTIFICATION_TITLE")
	if cfg.NotificationTitle == "" {
		cfg.NotificationTitle = "Another hour together"
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "data/tracker.db" // SQLite file next to the binary
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		chatIDStr := os.Getenv("TELEGRAM_CHAT_ID")
		if chatIDStr == "" {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID is not set")
		}
		cfg.TelegramChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}

	cfg.PhotoAPIURL = strings.TrimRight(os.Getenv("PHOTO_API_URL"), "/")

	return cfg, nil
}

// TickSpecFor maps a display granularity to the cron spec driving the tick.
func TickSpecFor(granularity string) (string, error) {
	switch granularity {
	case GranularitySecond:
		return "@every 1s", nil
	case GranularityMinute:
		return "@every 1m", nil
	default:
		return "", fmt.Errorf("invalid DISPLAY_GRANULARITY %q: want %q or %q", granularity, GranularitySecond, GranularityMinute)
	}
}
