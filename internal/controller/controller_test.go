package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/snappy-loop/estampa/internal/messages"
	"github.com/snappy-loop/estampa/internal/models"
)

// fakeGenerator records calls and returns a fixed result or error.
// When block is set, each call waits for a value on it.
type fakeGenerator struct {
	mu     sync.Mutex
	calls  []models.GenerationRequest
	result *models.GenerationResult
	err    error
	block  chan struct{}
	seen   chan struct{}
}

func (f *fakeGenerator) GenerateImages(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.seen != nil {
		f.seen <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.GenerationEvent
	err    error
}

func (p *fakePublisher) PublishGeneration(_ context.Context, evt *models.GenerationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func okResult(payload string) *models.GenerationResult {
	return &models.GenerationResult{Images: []models.GeneratedImage{{ImageBytesBase64: payload, MIMEType: "image/jpeg"}}}
}

func TestNew_InitialView(t *testing.T) {
	c := New(&fakeGenerator{}, nil)
	v := c.View()

	if v.State != models.StateIdle || v.TriggerDisabled || v.LoaderVisible || v.ImageVisible || v.AriaBusy {
		t.Errorf("unexpected initial view: %+v", v)
	}
	if !v.PlaceholderVisible || v.PlaceholderText != messages.Default().Placeholder || v.PlaceholderError {
		t.Errorf("placeholder hint not shown: %+v", v)
	}
}

func TestSubmit_EmptyPromptDoesNotCallGenerator(t *testing.T) {
	for _, raw := range []string{"", " ", "\t\n  "} {
		gen := &fakeGenerator{result: okResult("ABC123")}
		var renders []models.View
		c := New(gen, nil, WithRenderer(func(v models.View) { renders = append(renders, v) }))

		err := c.Submit(context.Background(), raw)

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("Submit(%q) err = %v, want ValidationError", raw, err)
		}
		if vErr.Message != messages.Default().Validation {
			t.Errorf("message = %q", vErr.Message)
		}
		if gen.callCount() != 0 {
			t.Errorf("generator called %d times for %q", gen.callCount(), raw)
		}
		v := c.View()
		if !v.PlaceholderVisible || v.PlaceholderText != messages.Default().Validation || !v.PlaceholderError {
			t.Errorf("validation message not shown: %+v", v)
		}
		if v.State != models.StateIdle || v.TriggerDisabled || v.LoaderVisible {
			t.Errorf("validation must not enter busy: %+v", v)
		}
		for _, r := range renders {
			if r.State == models.StateBusy {
				t.Errorf("busy render on validation path: %+v", r)
			}
		}
	}
}

func TestSubmit_BusyDuringCallIdleAfter(t *testing.T) {
	for _, tc := range []struct {
		name string
		gen  *fakeGenerator
	}{
		{"success", &fakeGenerator{result: okResult("ABC123")}},
		{"failure", &fakeGenerator{err: errors.New("boom")}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tc.gen.block = make(chan struct{})
			tc.gen.seen = make(chan struct{}, 1)
			c := New(tc.gen, nil)

			done := make(chan error, 1)
			go func() { done <- c.Submit(context.Background(), "um leão") }()

			<-tc.gen.seen
			v := c.View()
			if v.State != models.StateBusy || !v.TriggerDisabled || !v.LoaderVisible || !v.AriaBusy {
				t.Errorf("not busy while awaiting: %+v", v)
			}
			if v.PlaceholderVisible || v.ImageVisible {
				t.Errorf("placeholder and image should be hidden while busy: %+v", v)
			}

			close(tc.gen.block)
			<-done

			v = c.View()
			if v.State != models.StateIdle || v.TriggerDisabled || v.LoaderVisible || v.AriaBusy {
				t.Errorf("not idle after completion: %+v", v)
			}
		})
	}
}

func TestSubmit_SuccessShowsDataURI(t *testing.T) {
	gen := &fakeGenerator{result: okResult("ABC123")}
	c := New(gen, nil, WithModel("imagen-4.0-generate-001"))

	if err := c.Submit(context.Background(), "  flores tropicais  "); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	v := c.View()
	if v.ImageSrc != "data:image/jpeg;base64,ABC123" {
		t.Errorf("ImageSrc = %q", v.ImageSrc)
	}
	if !v.ImageVisible || v.PlaceholderVisible {
		t.Errorf("image should be shown and placeholder hidden: %+v", v)
	}

	req := gen.calls[0]
	if req.Prompt != "flores tropicais" {
		t.Errorf("prompt not trimmed: %q", req.Prompt)
	}
	if req.Model != "imagen-4.0-generate-001" || req.NumberOfImages != 1 || req.OutputMIMEType != "image/jpeg" || req.AspectRatio != "1:1" {
		t.Errorf("unexpected request config: %+v", req)
	}
}

func TestSubmit_FailureShowsMessageAndHidesStaleImage(t *testing.T) {
	gen := &fakeGenerator{result: okResult("FIRST")}
	c := New(gen, nil)
	if err := c.Submit(context.Background(), "primeira"); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	cause := errors.New("permission denied: api key invalid")
	gen.result, gen.err = nil, cause
	err := c.Submit(context.Background(), "segunda")

	var gErr *GenerationError
	if !errors.As(err, &gErr) {
		t.Fatalf("err = %v, want GenerationError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("GenerationError should wrap the cause")
	}
	if gErr.Message != messages.Default().Generation {
		t.Errorf("user message = %q", gErr.Message)
	}

	v := c.View()
	if !v.PlaceholderVisible || v.PlaceholderText != messages.Default().Generation || !v.PlaceholderError {
		t.Errorf("failure message not shown: %+v", v)
	}
	if v.ImageVisible || v.ImageSrc != "" {
		t.Errorf("stale image still shown: %+v", v)
	}
}

func TestSubmit_EmptyResultIsGenerationError(t *testing.T) {
	for name, res := range map[string]*models.GenerationResult{
		"nil":           nil,
		"no images":     {},
		"missing bytes": {Images: []models.GeneratedImage{{MIMEType: "image/jpeg"}}},
	} {
		t.Run(name, func(t *testing.T) {
			c := New(&fakeGenerator{result: res}, nil)
			err := c.Submit(context.Background(), "algo")

			var gErr *GenerationError
			if !errors.As(err, &gErr) || !errors.Is(err, models.ErrNoImages) {
				t.Fatalf("err = %v, want GenerationError wrapping ErrNoImages", err)
			}
			if v := c.View(); v.State != models.StateIdle || !v.PlaceholderVisible {
				t.Errorf("unexpected view: %+v", v)
			}
		})
	}
}

func TestKeyDown(t *testing.T) {
	tests := []struct {
		name        string
		ev          KeyEvent
		wantHandled bool
		wantCalls   int
	}{
		{"enter submits", KeyEvent{Key: "Enter"}, true, 1},
		{"shift+enter inserts newline", KeyEvent{Key: "Enter", ShiftKey: true}, false, 0},
		{"other key", KeyEvent{Key: "a"}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{result: okResult("ABC123")}
			c := New(gen, nil)

			handled, err := c.KeyDown(context.Background(), tt.ev, "uma onda")
			if err != nil {
				t.Fatalf("KeyDown: %v", err)
			}
			if handled != tt.wantHandled {
				t.Errorf("handled = %v", handled)
			}
			if gen.callCount() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", gen.callCount(), tt.wantCalls)
			}
		})
	}
}

func TestKeyDown_SameEffectAsSubmit(t *testing.T) {
	byClick := New(&fakeGenerator{result: okResult("ABC123")}, nil)
	byKey := New(&fakeGenerator{result: okResult("ABC123")}, nil)

	if err := byClick.Submit(context.Background(), "sol"); err != nil {
		t.Fatal(err)
	}
	if _, err := byKey.KeyDown(context.Background(), KeyEvent{Key: "Enter"}, "sol"); err != nil {
		t.Fatal(err)
	}

	a, b := byClick.View(), byKey.View()
	a.RequestID, b.RequestID = nil, nil
	if a != b {
		t.Errorf("views differ:\nclick %+v\nkey   %+v", a, b)
	}
}

func TestSubmit_SequentialCallsAreIdempotent(t *testing.T) {
	for _, gen := range []*fakeGenerator{
		{result: okResult("ABC123")},
		{err: errors.New("unavailable")},
	} {
		c := New(gen, nil)
		_ = c.Submit(context.Background(), "mesmo prompt")
		first := c.View()
		_ = c.Submit(context.Background(), "mesmo prompt")
		second := c.View()

		first.RequestID, second.RequestID = nil, nil
		if first != second {
			t.Errorf("terminal views differ:\n%+v\n%+v", first, second)
		}
		if second.State != models.StateIdle {
			t.Errorf("residual busy state: %+v", second)
		}
	}
}

func TestSubmit_RejectsWhileBusy(t *testing.T) {
	gen := &fakeGenerator{
		result: okResult("ABC123"),
		block:  make(chan struct{}),
		seen:   make(chan struct{}, 1),
	}
	c := New(gen, nil)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "primeiro") }()
	<-gen.seen

	if err := c.Submit(context.Background(), "segundo"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Submit err = %v, want ErrBusy", err)
	}
	if handled, err := c.KeyDown(context.Background(), KeyEvent{Key: "Enter"}, "terceiro"); !handled || !errors.Is(err, ErrBusy) {
		t.Errorf("KeyDown while busy = %v, %v", handled, err)
	}
	if err := c.Submit(context.Background(), "   "); !errors.Is(err, ErrBusy) {
		t.Errorf("empty Submit while busy err = %v, want ErrBusy", err)
	}

	close(gen.block)
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if gen.callCount() != 1 {
		t.Errorf("calls = %d, want 1", gen.callCount())
	}
}

func TestClose_DiscardsLateResponse(t *testing.T) {
	gen := &fakeGenerator{
		result: okResult("LATE"),
		block:  make(chan struct{}),
		seen:   make(chan struct{}, 1),
	}
	pub := &fakePublisher{}
	var renders []models.View
	c := New(gen, nil, WithPublisher(pub), WithRenderer(func(v models.View) { renders = append(renders, v) }))

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "tarde") }()
	<-gen.seen

	c.Close()
	close(gen.block)

	if err := <-done; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("err = %v, want ErrDiscarded", err)
	}
	v := c.View()
	if v.ImageVisible || v.ImageSrc != "" || v.State != models.StateIdle {
		t.Errorf("late response touched the view: %+v", v)
	}
	if len(renders) != 1 {
		t.Errorf("renders = %d, want only the busy render", len(renders))
	}
	if len(pub.events) != 1 || pub.events[0].Outcome != models.OutcomeDiscarded {
		t.Errorf("events = %+v", pub.events)
	}
	if err := c.Submit(context.Background(), "de novo"); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close err = %v", err)
	}
}

func TestSubmit_TimeoutIsGenerationError(t *testing.T) {
	gen := &fakeGenerator{result: okResult("X"), block: make(chan struct{})}
	c := New(gen, nil, WithTimeout(10*time.Millisecond))

	err := c.Submit(context.Background(), "devagar")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if c.State() != models.StateIdle {
		t.Error("should be idle after timeout")
	}
}

func TestSubmit_PublishesEvents(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	gen := &fakeGenerator{result: okResult("ABC123")}
	c := New(gen, nil, WithPublisher(pub), WithModel("imagen-test"))

	if err := c.Submit(context.Background(), "ação"); err != nil {
		t.Fatalf("publish failure must not surface: %v", err)
	}
	gen.result, gen.err = nil, errors.New("boom")
	_ = c.Submit(context.Background(), "ação")
	_ = c.Submit(context.Background(), "")

	if len(pub.events) != 2 {
		t.Fatalf("events = %d, want 2 (validation is not published)", len(pub.events))
	}
	ok, failed := pub.events[0], pub.events[1]
	if ok.Outcome != models.OutcomeSucceeded || ok.Model != "imagen-test" || ok.PromptLength != 4 || ok.Error != "" {
		t.Errorf("success event = %+v", ok)
	}
	if failed.Outcome != models.OutcomeFailed || failed.Error != "boom" {
		t.Errorf("failure event = %+v", failed)
	}
}

func TestOnRender_OrderedSnapshots(t *testing.T) {
	c := New(&fakeGenerator{result: okResult("ABC123")}, nil)
	var states []models.UIState
	c.OnRender(func(v models.View) { states = append(states, v.State) })

	if err := c.Submit(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 || states[0] != models.StateBusy || states[1] != models.StateIdle {
		t.Errorf("states = %v", states)
	}
}

func TestSubmit_UsesCatalogStrings(t *testing.T) {
	msgs := &messages.Catalog{Placeholder: "hint", Validation: "vazio", Generation: "falhou"}
	gen := &fakeGenerator{err: errors.New("boom")}
	c := New(gen, msgs)

	if got := c.View().PlaceholderText; got != "hint" {
		t.Errorf("initial text = %q", got)
	}

	var vErr *ValidationError
	if err := c.Submit(context.Background(), " "); !errors.As(err, &vErr) || vErr.Message != "vazio" {
		t.Errorf("validation err = %v", err)
	}
	if v := c.View(); v.PlaceholderText != "vazio" || !v.PlaceholderError {
		t.Errorf("view = %+v", v)
	}

	var gErr *GenerationError
	if err := c.Submit(context.Background(), "x"); !errors.As(err, &gErr) || gErr.Message != "falhou" {
		t.Errorf("generation err = %v", err)
	}
	if v := c.View(); v.PlaceholderText != "falhou" || !v.PlaceholderError {
		t.Errorf("view = %+v", v)
	}
}
