package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr    string
	LogLevel    string
	WSReadLimit int64 // max inbound WebSocket message size in bytes

	// APITokenHashes are bcrypt hashes of bearer tokens accepted on /v1.
	// Empty leaves /v1 open.
	APITokenHashes []string

	// Gemini API
	GeminiAPIKey      string
	GeminiAPIEndpoint string // if set, overrides default Gemini API base URL (e.g. http://host.docker.internal:31300/gemini)
	GeminiModelImage  string // Imagen model, e.g. imagen-4.0-generate-001

	// Generation
	GenerationTimeout time.Duration // 0 waits for the API indefinitely

	// MessagesFile is an optional YAML file overriding the user-facing strings.
	MessagesFile string

	// Kafka (generation events). Empty brokers disables publishing.
	KafkaBrokers       []string
	KafkaTopicEvents   string
	KafkaConsumerGroup string
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first when present; real
// environment variables win over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		WSReadLimit: getEnvInt64("WS_READ_LIMIT", 64<<10),

		APITokenHashes: getEnvList("API_TOKEN_HASHES"),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		GeminiAPIEndpoint: getEnv("GEMINI_API_ENDPOINT", ""),
		GeminiModelImage:  getEnv("GEMINI_MODEL_IMAGE", "imagen-4.0-generate-001"),

		GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", 0),

		MessagesFile: getEnv("MESSAGES_FILE", ""),

		KafkaBrokers:       getEnvList("KAFKA_BROKERS"),
		KafkaTopicEvents:   getEnv("KAFKA_TOPIC_EVENTS", "estampa.generations.v1"),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "estampa-events"),
	}
}

// EventsEnabled reports whether generation events should be published.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks. Unset returns nil.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
