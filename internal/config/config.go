package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"telegram-diet-diary/internal/report"
)

type Config struct {
	HTTPAddr      string
	DBPath        string
	DatabaseURL   string // postgres DSN; empty -> local sqlite
	TelegramToken string // empty -> bot and scheduler are not started
	WebAppURL     string
	DefaultTZ     string
	SummaryAt     string // "HH:MM"
	CORSOrigin    string
	LogLevel      string
	LogFormat     string // "json" | "console"
}

// Load reads .env (when present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		DBPath:        env("DB_PATH", DBName),
		DatabaseURL:   env("DATABASE_URL", ""),
		TelegramToken: getBotToken(),
		WebAppURL:     strings.TrimRight(env("WEBAPP_URL", ""), "/"),
		DefaultTZ:     env("DEFAULT_TZ", "Europe/Moscow"),
		SummaryAt:     env("SUMMARY_AT", "21:00"),
		CORSOrigin:    env("CORS_ORIGIN", "*"),
		LogLevel:      env("LOG_LEVEL", "info"),
		LogFormat:     env("LOG_FORMAT", "json"),
	}
	if _, err := report.LoadZone(cfg.DefaultTZ); err != nil {
		return cfg, fmt.Errorf("DEFAULT_TZ: %w", err)
	}
	if _, err := time.Parse("15:04", cfg.SummaryAt); err != nil {
		return cfg, fmt.Errorf("SUMMARY_AT must be HH:MM, got %q", cfg.SummaryAt)
	}
	return cfg, nil
}

// Zone is the parsed DefaultTZ.
func (c Config) Zone() *time.Location {
	loc, err := report.LoadZone(c.DefaultTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getBotToken prefers the Docker secret over the environment.
func getBotToken() string {
	if data, err := os.ReadFile(secretPath); err == nil {
		token := strings.TrimSpace(string(data))
		if token != "" {
			return token
		}
	}
	return strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
}

const (
	DBName     = "bot.db"
	secretPath = "/run/secrets/telegram_bot_token"
)
