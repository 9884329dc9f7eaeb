package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string
	DatabaseURL   string

	// Booking engine
	BookingHoldTimeout time.Duration
	HousekeepingEvery  time.Duration

	// Availability slot cache
	RedisAddr     string
	RedisPassword string
	SlotCacheTTL  time.Duration

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	StripeDryRun        bool

	// Notifications
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	OutboxPollEvery   time.Duration

	// HTTP surface
	AdminJWTSecret     string
	CORSAllowedOrigins string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		BookingHoldTimeout: getEnvAsDuration("BOOKING_HOLD_TIMEOUT", 15*time.Minute),
		HousekeepingEvery:  getEnvAsDuration("HOUSEKEEPING_INTERVAL", time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SlotCacheTTL:  getEnvAsDuration("SLOT_CACHE_TTL", 30*time.Second),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", ""),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", ""),
		StripeDryRun:        getEnvAsBool("STRIPE_DRY_RUN", false),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "WellHaven"),
		OutboxPollEvery:   getEnvAsDuration("OUTBOX_POLL_INTERVAL", 15*time.Second),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
