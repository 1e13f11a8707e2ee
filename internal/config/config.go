package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	GeminiAPIKey string
	GeminiModel  string

	RedisAddr     string
	RedisPassword string

	// SlotCapacity is the maximum number of appointments allowed at the same
	// hospital/date/time before the slot is reported as full.
	SlotCapacity int

	// SpeechConfidenceThreshold is the minimum transcript confidence accepted
	// from the telephony provider; lower-confidence transcripts are replaced
	// with a re-prompt before extraction.
	SpeechConfidenceThreshold float64

	// GatherTimeout is how long the telephony provider waits for speech
	// before giving up on a turn.
	GatherTimeout time.Duration

	// LLMTimeout bounds each model-backend call; on expiry the turn proceeds
	// with the deterministic-only extraction result.
	LLMTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		SlotCapacity:              getEnvAsInt("SLOT_CAPACITY", 3),
		SpeechConfidenceThreshold: getEnvAsFloat("SPEECH_CONFIDENCE_THRESHOLD", 0.3),
		GatherTimeout:             getEnvAsDuration("GATHER_TIMEOUT", 10*time.Second),
		LLMTimeout:                getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
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
