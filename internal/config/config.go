// Package config reads process settings from the environment, after loading an
// optional .env file.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string
	LogFormat   string

	JWTSecret string
	TokenTTL  time.Duration

	CORSOrigins []string

	RedisURL       string
	RateLimit      int
	RateLimitEvery time.Duration

	RabbitURL      string
	RabbitExchange string
	RabbitQueue    string

	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string

	SendGridAPIKey   string
	SendGridFrom     string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	NoShowGrace    time.Duration
	PendingTTL     time.Duration
	JobSchedule    string
	ShutdownPeriod time.Duration
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenTTL:    getEnvDuration("TOKEN_TTL", 24*time.Hour),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		RedisURL:       os.Getenv("REDIS_URL"),
		RateLimit:      getEnvInt("RATE_LIMIT", 60),
		RateLimitEvery: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		RabbitURL:      os.Getenv("RABBITMQ_URL"),
		RabbitExchange: getEnv("RABBITMQ_EXCHANGE", "parkspot.reservations"),
		RabbitQueue:    getEnv("RABBITMQ_QUEUE", "parkspot.notifications"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:            strings.ToLower(getEnv("CURRENCY", "inr")),

		SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		SendGridFrom:     getEnv("SENDGRID_FROM", "no-reply@parkspot.local"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM"),

		NoShowGrace:    getEnvDuration("NO_SHOW_GRACE", 30*time.Minute),
		PendingTTL:     getEnvDuration("PENDING_TTL", 15*time.Minute),
		JobSchedule:    getEnv("JOB_SCHEDULE", "@every 1m"),
		ShutdownPeriod: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET not set")
	}
	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret == "" {
		return nil, errors.New("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}
	if cfg.RateLimit < 0 {
		return nil, errors.New("RATE_LIMIT must not be negative")
	}
	return cfg, nil
}

func (c *Config) PaymentsEnabled() bool { return c.StripeSecretKey != "" }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
