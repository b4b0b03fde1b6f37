package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fixed generation config: one square JPEG per request.
const (
	NumberOfImages = 1
	OutputMIMEType = "image/jpeg"
	AspectRatio    = "1:1"
)

// ErrNoImages is returned when the API succeeds but yields nothing displayable.
var ErrNoImages = errors.New("no image data in generation result")

// Prompt is trimmed, non-empty user text. Scoped to a single request.
type Prompt string

// NewPrompt trims raw input. ok is false for empty or whitespace-only text.
func NewPrompt(raw string) (Prompt, bool) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return "", false
	}
	return Prompt(p), true
}

// UIState is the controller state: idle or busy.
type UIState int

const (
	StateIdle UIState = iota
	StateBusy
)

func (s UIState) String() string {
	if s == StateBusy {
		return "busy"
	}
	return "idle"
}

// MarshalText encodes the state as "idle" / "busy".
func (s UIState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *UIState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = StateIdle
	case "busy":
		*s = StateBusy
	default:
		return errors.New("unknown ui state: " + string(b))
	}
	return nil
}

// GenerationRequest is built fresh per submit and discarded after the call.
type GenerationRequest struct {
	ID             uuid.UUID
	Model          string
	Prompt         Prompt
	NumberOfImages int
	OutputMIMEType string
	AspectRatio    string
}

// NewGenerationRequest returns a request with the fixed output config.
func NewGenerationRequest(model string, prompt Prompt) GenerationRequest {
	return GenerationRequest{
		ID:             uuid.New(),
		Model:          model,
		Prompt:         prompt,
		NumberOfImages: NumberOfImages,
		OutputMIMEType: OutputMIMEType,
		AspectRatio:    AspectRatio,
	}
}

// GeneratedImage is one image returned by the API, base64 encoded.
type GeneratedImage struct {
	ImageBytesBase64 string `json:"image_bytes_base64"`
	MIMEType         string `json:"mime_type,omitempty"`
}

// GenerationResult is the collection of images returned for a request.
type GenerationResult struct {
	Images []GeneratedImage `json:"images"`
}

// First returns the first image, or ErrNoImages when the collection is empty
// or the first entry carries no bytes.
func (r *GenerationResult) First() (GeneratedImage, error) {
	if r == nil || len(r.Images) == 0 || r.Images[0].ImageBytesBase64 == "" {
		return GeneratedImage{}, ErrNoImages
	}
	return r.Images[0], nil
}

// DataURI builds an inline data URI from a base64 payload.
func DataURI(mimeType, base64Payload string) string {
	return "data:" + mimeType + ";base64," + base64Payload
}

// View is a snapshot of the rendered surfaces: trigger, loader, placeholder
// and result image, plus the busy marker on the result region.
type View struct {
	State              UIState    `json:"state"`
	TriggerDisabled    bool       `json:"trigger_disabled"`
	LoaderVisible      bool       `json:"loader_visible"`
	PlaceholderVisible bool       `json:"placeholder_visible"`
	PlaceholderText    string     `json:"placeholder_text"`
	PlaceholderError   bool       `json:"placeholder_error"`
	ImageVisible       bool       `json:"image_visible"`
	ImageSrc           string     `json:"image_src,omitempty"`
	AriaBusy           bool       `json:"aria_busy"`
	RequestID          *uuid.UUID `json:"request_id,omitempty"`
}

// Generation outcomes reported in GenerationEvent.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded" // response arrived after the session moved on
)

// GenerationEvent is operator telemetry for one completed request.
// It never carries the prompt text or the image.
type GenerationEvent struct {
	RequestID    uuid.UUID `json:"request_id"`
	Outcome      string    `json:"outcome"`
	Model        string    `json:"model"`
	PromptLength int       `json:"prompt_length"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}
