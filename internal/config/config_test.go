package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_ADDR", "GEMINI_API_KEY", "API_KEY", "GEMINI_MODEL_IMAGE",
		"GENERATION_TIMEOUT", "KAFKA_BROKERS", "WS_READ_LIMIT",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.GeminiModelImage != "imagen-4.0-generate-001" {
		t.Errorf("GeminiModelImage = %q", cfg.GeminiModelImage)
	}
	if cfg.GenerationTimeout != 0 {
		t.Errorf("GenerationTimeout = %v, want 0 (no timeout)", cfg.GenerationTimeout)
	}
	if cfg.WSReadLimit != 64<<10 {
		t.Errorf("WSReadLimit = %d", cfg.WSReadLimit)
	}
	if cfg.EventsEnabled() {
		t.Error("events should be disabled without KAFKA_BROKERS")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "from-api-key")
	t.Setenv("GENERATION_TIMEOUT", "45s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("WS_READ_LIMIT", "not-a-number")
	t.Setenv("API_TOKEN_HASHES", "$2a$10$first,$2a$10$second")

	cfg := Load()

	if cfg.GeminiAPIKey != "from-api-key" {
		t.Errorf("GeminiAPIKey = %q, want API_KEY fallback", cfg.GeminiAPIKey)
	}
	if cfg.GenerationTimeout != 45*time.Second {
		t.Errorf("GenerationTimeout = %v", cfg.GenerationTimeout)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "k1:9092" || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.EventsEnabled() {
		t.Error("events should be enabled")
	}
	if cfg.WSReadLimit != 64<<10 {
		t.Errorf("invalid WS_READ_LIMIT should fall back to default, got %d", cfg.WSReadLimit)
	}
	if len(cfg.APITokenHashes) != 2 || cfg.APITokenHashes[1] != "$2a$10$second" {
		t.Errorf("APITokenHashes = %v", cfg.APITokenHashes)
	}
}

func TestLoad_GeminiKeyWinsOverAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gemini")
	t.Setenv("API_KEY", "other")

	if got := Load().GeminiAPIKey; got != "gemini" {
		t.Errorf("GeminiAPIKey = %q", got)
	}
}
