package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string
	SourcesFile string

	// Text generation (provider fallback chain, tried in order)
	RemoteModelAPIKey  string
	RemoteModelName    string
	RemoteModelBaseURL string
	LocalModelBaseURL  string
	LocalModelName     string

	// Geocoding
	GeocoderBaseURL   string
	GeocoderUserAgent string

	// Cache freshness
	DiscoverTTL time.Duration
	TonightTTL  time.Duration

	// Orchestration budgets
	DiscoverSourceTimeout time.Duration
	TonightSourceTimeout  time.Duration
	TonightDefaultLimit   int
	TonightMaxLimit       int

	// Extraction
	PageTextMaxChars int

	// Housekeeping
	CleanupInterval  time.Duration
	CleanupRetention time.Duration

	// Alert Email Configuration
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	FromEmail     string
	AlertEmail    string
	AlertCooldown time.Duration
}

func Load() *Config {
	smtpPort, _ := strconv.Atoi(getEnv("SMTP_PORT", "2525"))

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "user:password@tcp(localhost:3306)/goodturn?charset=utf8mb4&parseTime=True&loc=Local"),
		SourcesFile: getEnv("SOURCES_FILE", "sources.yaml"),

		RemoteModelAPIKey:  getEnv("REMOTE_MODEL_API_KEY", ""),
		RemoteModelName:    getEnv("REMOTE_MODEL_NAME", "gpt-4o-mini"),
		RemoteModelBaseURL: getEnv("REMOTE_MODEL_BASE_URL", "https://api.openai.com/v1"),
		LocalModelBaseURL:  getEnv("LOCAL_MODEL_BASE_URL", "http://localhost:11434"),
		LocalModelName:     getEnv("LOCAL_MODEL_NAME", "llama3"),

		GeocoderBaseURL:   getEnv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent: getEnv("GEOCODER_USER_AGENT", "goodturn-api/1.0"),

		DiscoverTTL: getDurationEnv("DISCOVER_TTL", 72*time.Hour),
		TonightTTL:  getDurationEnv("TONIGHT_TTL", 3*time.Hour),

		DiscoverSourceTimeout: getDurationEnv("DISCOVER_SOURCE_TIMEOUT", 45*time.Second),
		TonightSourceTimeout:  getDurationEnv("TONIGHT_SOURCE_TIMEOUT", 20*time.Second),
		TonightDefaultLimit:   getIntEnv("TONIGHT_DEFAULT_LIMIT", 10),
		TonightMaxLimit:       getIntEnv("TONIGHT_MAX_LIMIT", 50),

		PageTextMaxChars: getIntEnv("PAGE_TEXT_MAX_CHARS", 4000),

		CleanupInterval:  getDurationEnv("CLEANUP_INTERVAL", 6*time.Hour),
		CleanupRetention: getDurationEnv("CLEANUP_RETENTION", 14*24*time.Hour),

		// Alert email settings
		SMTPHost:      getEnv("SMTP_HOST", "sandbox.smtp.mailtrap.io"),
		SMTPPort:      smtpPort,
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		FromEmail:     getEnv("FROM_EMAIL", "alerts@goodturn.app"),
		AlertEmail:    getEnv("ALERT_EMAIL", ""),
		AlertCooldown: getDurationEnv("ALERT_COOLDOWN", 30*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
