package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// NLU provider selections.
const (
	NLUProviderAuto    = "auto"
	NLUProviderGemini  = "gemini"
	NLUProviderBedrock = "bedrock"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	TenantCacheTTL time.Duration

	NLUProvider    string
	NLUTimeout     time.Duration
	GeminiAPIKey   string
	GeminiModel    string
	BedrockModelID string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	StoreTimeout time.Duration
	HistoryLimit int

	// WhatsApp Cloud API (Meta) channel
	WhatsAppVerifyToken  string
	WhatsAppAppSecret    string
	WhatsAppAccessToken  string
	WhatsAppGraphBaseURL string

	// Twilio channel
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioWebhookURL string

	AdminJWTSecret string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:      getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		TenantCacheTTL: getEnvAsDuration("TENANT_CACHE_TTL", 5*time.Minute),

		NLUProvider:    strings.ToLower(strings.TrimSpace(getEnv("NLU_PROVIDER", NLUProviderAuto))),
		NLUTimeout:     getEnvAsDuration("NLU_TIMEOUT", 12*time.Second),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),

		StoreTimeout: getEnvAsDuration("STORE_TIMEOUT", 5*time.Second),
		HistoryLimit: getEnvAsInt("HISTORY_LIMIT", 40),

		WhatsAppVerifyToken:  getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:    getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppAccessToken:  getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppGraphBaseURL: getEnv("WHATSAPP_GRAPH_BASE_URL", "https://graph.facebook.com/v19.0"),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWebhookURL: getEnv("TWILIO_WEBHOOK_URL", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// WhatsAppEnabled reports whether outbound WhatsApp sends are possible.
func (c *Config) WhatsAppEnabled() bool {
	return c != nil && c.WhatsAppAccessToken != ""
}

// TwilioEnabled reports whether outbound Twilio sends are possible.
func (c *Config) TwilioEnabled() bool {
	return c != nil && c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
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
