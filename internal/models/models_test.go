package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewPrompt(t *testing.T) {
	tests := []struct {
		raw    string
		want   Prompt
		wantOK bool
	}{
		{"", "", false},
		{"   ", "", false},
		{"\n\t \r\n", "", false},
		{"  gato astronauta  ", "gato astronauta", true},
		{"linha 1\nlinha 2\n", "linha 1\nlinha 2", true},
	}
	for _, tt := range tests {
		got, ok := NewPrompt(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NewPrompt(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNewGenerationRequest_FixedConfig(t *testing.T) {
	a := NewGenerationRequest("imagen-4.0-generate-001", "flores")
	b := NewGenerationRequest("imagen-4.0-generate-001", "flores")

	if a.NumberOfImages != 1 || a.OutputMIMEType != "image/jpeg" || a.AspectRatio != "1:1" {
		t.Errorf("unexpected config: %+v", a)
	}
	if a.ID == b.ID {
		t.Error("each request should get a fresh id")
	}
}

func TestGenerationResult_First(t *testing.T) {
	var nilResult *GenerationResult
	if _, err := nilResult.First(); !errors.Is(err, ErrNoImages) {
		t.Errorf("nil result: err = %v", err)
	}
	if _, err := (&GenerationResult{}).First(); !errors.Is(err, ErrNoImages) {
		t.Errorf("empty result: err = %v", err)
	}
	missing := &GenerationResult{Images: []GeneratedImage{{MIMEType: "image/jpeg"}}}
	if _, err := missing.First(); !errors.Is(err, ErrNoImages) {
		t.Errorf("missing bytes: err = %v", err)
	}

	ok := &GenerationResult{Images: []GeneratedImage{{ImageBytesBase64: "ABC123"}, {ImageBytesBase64: "ZZZ"}}}
	img, err := ok.First()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.ImageBytesBase64 != "ABC123" {
		t.Errorf("First() = %q", img.ImageBytesBase64)
	}
}

func TestDataURI(t *testing.T) {
	if got := DataURI(OutputMIMEType, "ABC123"); got != "data:image/jpeg;base64,ABC123" {
		t.Errorf("DataURI = %q", got)
	}
}

func TestUIState_JSON(t *testing.T) {
	data, err := json.Marshal(View{State: StateBusy})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v View
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.State != StateBusy {
		t.Errorf("state = %v", v.State)
	}

	var s UIState
	if err := s.UnmarshalText([]byte("sleeping")); err == nil {
		t.Error("expected error for unknown state")
	}
}
