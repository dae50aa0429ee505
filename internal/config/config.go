package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	DBDriver      string
	DBConn        string
	LogLevel      string
	JWTSecret     string
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
	SenderEmail   string
	ReminderCron  string
	InviteTTL     time.Duration
	InviteBaseURL string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DBDriver:      getEnv("DB_DRIVER", "postgres"),
		DBConn:        getEnv("DB_CONN", "host=localhost port=5432 user=chama password=chama dbname=chama sslmode=disable"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:     getEnv("JWT_SECRET", "secret"),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SenderEmail:   getEnv("SENDER_EMAIL", "no-reply@chama.local"),
		ReminderCron:  getEnv("REMINDER_CRON", "0 9 * * *"),
		InviteBaseURL: getEnv("INVITE_BASE_URL", "http://localhost:8080/invitations"),
	}

	ttlHours, err := strconv.Atoi(getEnv("INVITE_TTL_HOURS", "168"))
	if err != nil || ttlHours <= 0 {
		return nil, fmt.Errorf("INVITE_TTL_HOURS must be a positive integer")
	}
	cfg.InviteTTL = time.Duration(ttlHours) * time.Hour

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
