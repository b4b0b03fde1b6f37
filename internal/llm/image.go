package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/estampa/internal/models"
	"google.golang.org/genai"
)

// GenerateImages sends one Imagen request built from req and returns the images
// base64 encoded. An empty or filtered result is not an error here; callers decide.
func (c *Client) GenerateImages(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	if c.images == nil {
		return nil, ErrNotConfigured
	}

	model := req.Model
	if model == "" {
		model = c.modelImage
	}

	log.Debug().
		Str("request_id", req.ID.String()).
		Str("model", model).
		Int("prompt_length", len(req.Prompt)).
		Msg("Generating image")

	config := &genai.GenerateImagesConfig{
		NumberOfImages:   int32(req.NumberOfImages),
		OutputMIMEType:   req.OutputMIMEType,
		AspectRatio:      req.AspectRatio,
		IncludeRAIReason: true,
	}

	resp, err := c.images.GenerateImages(ctx, model, string(req.Prompt), config)
	if err != nil {
		return nil, fmt.Errorf("generate images: %w", err)
	}

	logGeminiResponse("GenerateImages", summarizeResponse(resp))
	return resultFromResponse(resp, req.OutputMIMEType), nil
}

// resultFromResponse converts the SDK response in order. An entry without
// bytes (e.g. RAI-filtered) stays in place with an empty payload, so a first
// image lacking data surfaces as models.ErrNoImages from First.
func resultFromResponse(resp *genai.GenerateImagesResponse, defaultMIME string) *models.GenerationResult {
	result := &models.GenerationResult{}
	if resp == nil {
		return result
	}
	for _, gi := range resp.GeneratedImages {
		img := models.GeneratedImage{MIMEType: defaultMIME}
		if gi != nil && gi.Image != nil {
			if gi.Image.MIMEType != "" {
				img.MIMEType = gi.Image.MIMEType
			}
			if len(gi.Image.ImageBytes) > 0 {
				img.ImageBytesBase64 = base64.StdEncoding.EncodeToString(gi.Image.ImageBytes)
			}
		}
		result.Images = append(result.Images, img)
	}
	return result
}

func summarizeResponse(resp *genai.GenerateImagesResponse) string {
	if resp == nil {
		return "images=0"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "images=%d", len(resp.GeneratedImages))
	for i, gi := range resp.GeneratedImages {
		if gi == nil {
			continue
		}
		size := 0
		if gi.Image != nil {
			size = len(gi.Image.ImageBytes)
		}
		fmt.Fprintf(&b, " [%d bytes=%d", i, size)
		if gi.RAIFilteredReason != "" {
			fmt.Fprintf(&b, " rai=%q", gi.RAIFilteredReason)
		}
		b.WriteString("]")
	}
	return b.String()
}
