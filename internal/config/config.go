package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	StaticDir          string
	CORSAllowedOrigins []string
	MetricsEnabled     bool

	// Chat widget
	ChatReplyDelay    time.Duration
	ChatScriptPath    string
	ChatSessionTTL    time.Duration
	ChatSweepInterval time.Duration

	// Field relay
	RelayBackend  string
	RelayTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Contact endpoint
	ContactRateLimit float64
	ContactRateBurst int

	// Submission notifications
	SiteName        string
	NotifyProvider  string
	NotifyToEmail   string
	NotifyFromEmail string
	NotifyFromName  string
	SendGridAPIKey  string

	// AWS (SES notifier)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		StaticDir:          getEnv("STATIC_DIR", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		MetricsEnabled:     getEnvAsBool("METRICS_ENABLED", true),

		ChatReplyDelay:    getEnvAsDuration("CHAT_REPLY_DELAY", 500*time.Millisecond),
		ChatScriptPath:    getEnv("CHAT_SCRIPT_PATH", ""),
		ChatSessionTTL:    getEnvAsDuration("CHAT_SESSION_TTL", 30*time.Minute),
		ChatSweepInterval: getEnvAsDuration("CHAT_SWEEP_INTERVAL", 5*time.Minute),

		RelayBackend:  strings.ToLower(strings.TrimSpace(getEnv("RELAY_BACKEND", "memory"))),
		RelayTTL:      getEnvAsDuration("RELAY_TTL", 0),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ContactRateLimit: getEnvAsFloat("CONTACT_RATE_LIMIT", 1),
		ContactRateBurst: getEnvAsInt("CONTACT_RATE_BURST", 5),

		SiteName:        getEnv("SITE_NAME", "ShineStar Cleaners"),
		NotifyProvider:  strings.ToLower(strings.TrimSpace(getEnv("NOTIFY_PROVIDER", "none"))),
		NotifyToEmail:   getEnv("NOTIFY_TO_EMAIL", ""),
		NotifyFromEmail: getEnv("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:  getEnv("NOTIFY_FROM_NAME", ""),
		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// UseRedisRelay reports whether relayed form fields should live in Redis.
func (c *Config) UseRedisRelay() bool {
	return c.RelayBackend == "redis"
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma separated variable, dropping blanks.
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
