package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // seller time zones must resolve on minimal images

	"github.com/go-playground/validator/v10"
)

// Config holds application configuration
type Config struct {
	Port      string `validate:"required,numeric"`
	Env       string
	LogLevel  string `validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat string `validate:"omitempty,oneof=json text"`

	// Marketplace backend
	StorefrontBaseURL string        `validate:"required,url"`
	StorefrontTimeout time.Duration `validate:"gt=0"`
	SellerTimezone    string        `validate:"required,timezone"`

	// Booking flow
	QuickPickDays int           `validate:"gte=1,lte=31"`
	CalendarDays  int           `validate:"gtefield=QuickPickDays"`
	DraftTTL      time.Duration `validate:"gte=1m"`

	// Submit ledger
	RedisAddr       string `validate:"omitempty,hostname_port"`
	RedisPassword   string
	RedisTLS        bool
	SubmitLedgerTTL time.Duration `validate:"gte=1m"`
	// How long a key stays claimed after a submit with an unknown outcome.
	SubmitSettleWindow time.Duration `validate:"omitempty,gte=1s,ltefield=SubmitLedgerTTL"`

	// Gateway throttling, per customer
	RateLimitPerSecond float64 `validate:"gte=0"`
	RateLimitBurst     int     `validate:"gte=1"`

	// Realtime chat (Pusher channels)
	PusherAppKey     string
	PusherCluster    string
	PusherHost       string
	ChatAuthEndpoint string `validate:"omitempty,url"`

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	baseURL := strings.TrimRight(getEnv("STOREFRONT_BASE_URL", "https://leen-app.com/public/api"), "/")
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		StorefrontBaseURL: baseURL,
		StorefrontTimeout: getEnvAsDuration("STOREFRONT_TIMEOUT", 15*time.Second),
		SellerTimezone:    getEnv("SELLER_TIMEZONE", "Asia/Riyadh"),

		QuickPickDays: getEnvAsInt("QUICK_PICK_DAYS", 7),
		CalendarDays:  getEnvAsInt("CALENDAR_DAYS", 365),
		DraftTTL:      getEnvAsDuration("DRAFT_TTL", 30*time.Minute),

		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		SubmitLedgerTTL:    getEnvAsDuration("SUBMIT_LEDGER_TTL", 24*time.Hour),
		SubmitSettleWindow: getEnvAsDuration("SUBMIT_SETTLE_WINDOW", 2*time.Minute),

		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		PusherAppKey:     getEnv("PUSHER_APP_KEY", ""),
		PusherCluster:    getEnv("PUSHER_CLUSTER", "eu"),
		PusherHost:       getEnv("PUSHER_HOST", ""),
		ChatAuthEndpoint: getEnv("CHAT_AUTH_ENDPOINT", baseURL+"/broadcasting/auth/customer"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// Validate checks the loaded values and reports every offending field.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SellerLocation resolves the seller time zone, falling back to UTC.
func (c *Config) SellerLocation() *time.Location {
	loc, err := time.LoadLocation(c.SellerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
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

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
