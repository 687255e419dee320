package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	GinMode string
	Port    string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret     string
	JWTExpiration time.Duration
	JWTIssuer     string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string
	FrontendURL  string

	// Cron expression for the deadline reminder scan.
	ReminderSchedule string
}

func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "taskhub")
	v.SetDefault("DB_PASSWORD", "taskhub")
	v.SetDefault("DB_NAME", "taskhub")
	v.SetDefault("JWT_SECRET", "default-secret-change-me")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "taskhub")
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("EMAIL_FROM", "noreply@taskhub.local")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("REMINDER_SCHEDULE", "0 9 * * *")

	return &Config{
		GinMode:          v.GetString("GIN_MODE"),
		Port:             v.GetString("PORT"),
		DBHost:           v.GetString("DB_HOST"),
		DBPort:           v.GetString("DB_PORT"),
		DBUser:           v.GetString("DB_USER"),
		DBPassword:       v.GetString("DB_PASSWORD"),
		DBName:           v.GetString("DB_NAME"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		JWTExpiration:    v.GetDuration("JWT_EXPIRATION"),
		JWTIssuer:        v.GetString("JWT_ISSUER"),
		SMTPHost:         v.GetString("SMTP_HOST"),
		SMTPPort:         v.GetInt("SMTP_PORT"),
		SMTPUser:         v.GetString("SMTP_USER"),
		SMTPPassword:     v.GetString("SMTP_PASSWORD"),
		EmailFrom:        v.GetString("EMAIL_FROM"),
		FrontendURL:      v.GetString("FRONTEND_URL"),
		ReminderSchedule: v.GetString("REMINDER_SCHEDULE"),
	}
}
