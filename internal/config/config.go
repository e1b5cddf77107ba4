package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	// Session store
	SessionStore  string // "memory" or "redis"
	SessionTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Dialog behaviour
	RedirectLimit     int
	MinSymptomLength  int
	DefaultSpecialist string

	// Gateway callback throttling; zero disables it.
	RateLimitPerSec float64
	RateLimitBurst  int

	// Africa's Talking SMS
	ATAPIKey        string
	ATUsername      string
	ATSenderID      string
	ATBaseURL       string
	SMSMaxRetries   int
	SMSRetryBackoff time.Duration

	// Symptom triage
	TriageProvider string // "bedrock", "gemini" or "off"
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		SessionStore:  strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", "memory"))),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		RedirectLimit:     getEnvAsInt("REDIRECT_LIMIT", 10),
		MinSymptomLength:  getEnvAsInt("MIN_SYMPTOM_LENGTH", 15),
		DefaultSpecialist: getEnv("DEFAULT_SPECIALIST", "General Practitioner"),

		RateLimitPerSec: getEnvAsFloat("RATE_LIMIT_PER_SEC", 0),
		RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 20),

		ATAPIKey:        getEnv("AT_API_KEY", ""),
		ATUsername:      getEnv("AT_USERNAME", "sandbox"),
		ATSenderID:      getEnv("AT_SENDER_ID", ""),
		ATBaseURL:       getEnv("AT_BASE_URL", ""),
		SMSMaxRetries:   getEnvAsInt("SMS_MAX_RETRIES", 3),
		SMSRetryBackoff: getEnvAsDuration("SMS_RETRY_BACKOFF", 250*time.Millisecond),

		TriageProvider: strings.ToLower(strings.TrimSpace(getEnv("TRIAGE_PROVIDER", "off"))),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}
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
