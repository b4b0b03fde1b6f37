package llm

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// maxGeminiResponseLogBytes is the max length of a response summary to log in full.
const maxGeminiResponseLogBytes = 8192

// ErrNotConfigured is returned when no API key was supplied at startup.
var ErrNotConfigured = errors.New("genai client not configured (GEMINI_API_KEY)")

// imagesAPI is the subset of genai.Models used for image generation.
type imagesAPI interface {
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// logGeminiResponse logs a response summary, truncating if over maxGeminiResponseLogBytes.
func logGeminiResponse(caller, raw string) {
	if len(raw) <= maxGeminiResponseLogBytes {
		log.Info().Str("caller", caller).Str("gemini_response", raw).Msg("Gemini response")
		return
	}
	log.Info().
		Str("caller", caller).
		Str("gemini_response", raw[:maxGeminiResponseLogBytes]+"... [truncated]").
		Int("gemini_response_len", len(raw)).
		Msg("Gemini response")
}

// Client wraps the unified genai SDK for Imagen calls.
type Client struct {
	modelImage string // e.g. imagen-4.0-generate-001
	images     imagesAPI
}

// NewClient creates a new image generation client.
// apiEndpoint: optional Gemini API base URL (e.g. http://host.docker.internal:31300/gemini).
// With an empty apiKey the client is created but every call returns ErrNotConfigured.
func NewClient(apiKey, modelImage, apiEndpoint string) *Client {
	if modelImage == "" {
		modelImage = "imagen-4.0-generate-001"
	}

	c := &Client{modelImage: modelImage}
	if apiKey != "" {
		cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
		if apiEndpoint != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: apiEndpoint}
		}
		client, err := genai.NewClient(context.Background(), cfg)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize genai client for image generation")
		} else {
			c.images = client.Models
		}
	}

	log.Info().
		Str("model_image", modelImage).
		Str("api_endpoint", apiEndpoint).
		Bool("genai_client", c.images != nil).
		Msg("LLM client initialized")

	return c
}

// Model returns the image model identifier requests should use.
func (c *Client) Model() string {
	return c.modelImage
}
