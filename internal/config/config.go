package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string
	DashboardURL  string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Twilio (provider notifications + inbound replies)
	TwilioAccountSID          string
	TwilioAuthToken           string
	TwilioWebhookSecret       string
	TwilioFromNumber          string
	TwilioMessagingServiceSID string

	// Email delivery
	EmailProvider     string
	SendGridAPIKey    string
	LeadEmailFrom     string
	LeadEmailFromName string
	LeadEmailReplyTo  string
	AdminEmail        string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	SESConfigurationSet string

	AdminJWTSecret     string
	CORSAllowedOrigins []string

	// Reply resolution
	SMSFreshnessWindow   time.Duration
	EmailFreshnessWindow time.Duration
	ReplyDedupTTL        time.Duration

	// Matching
	DefaultProviderTZ string
	ZIPCacheTTL       time.Duration

	// Lead intake
	LeadSubmitRate         float64
	LeadSubmitBurst        int
	LeadPriceStandardCents int
	LeadPriceStatCents     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		DashboardURL:  getEnv("DASHBOARD_URL", "https://mobilephlebotomy.org/dashboard"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TwilioAccountSID:          getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:           getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWebhookSecret:       getEnv("TWILIO_WEBHOOK_SECRET", ""),
		TwilioFromNumber:          getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioMessagingServiceSID: getEnv("TWILIO_MESSAGING_SERVICE_SID", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		LeadEmailFrom:     getEnv("LEAD_EMAIL_FROM", "leads@mobilephlebotomy.org"),
		LeadEmailFromName: getEnv("LEAD_EMAIL_FROM_NAME", "Mobile Phlebotomy Leads"),
		LeadEmailReplyTo:  getEnv("LEAD_EMAIL_REPLY_TO", ""),
		AdminEmail:        getEnv("ADMIN_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		SESConfigurationSet: getEnv("SES_CONFIGURATION_SET", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		SMSFreshnessWindow:   getEnvAsDuration("SMS_FRESHNESS_WINDOW", 24*time.Hour),
		EmailFreshnessWindow: getEnvAsDuration("EMAIL_FRESHNESS_WINDOW", 48*time.Hour),
		ReplyDedupTTL:        getEnvAsDuration("REPLY_DEDUP_TTL", 48*time.Hour),

		DefaultProviderTZ: getEnv("DEFAULT_PROVIDER_TZ", "America/New_York"),
		ZIPCacheTTL:       getEnvAsDuration("ZIP_CACHE_TTL", time.Hour),

		LeadSubmitRate:         getEnvAsFloat("LEAD_SUBMIT_RATE", 0.5),
		LeadSubmitBurst:        getEnvAsInt("LEAD_SUBMIT_BURST", 5),
		LeadPriceStandardCents: getEnvAsInt("LEAD_PRICE_STANDARD_CENTS", 2000),
		LeadPriceStatCents:     getEnvAsInt("LEAD_PRICE_STAT_CENTS", 5000),
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
