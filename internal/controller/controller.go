// Package controller implements the prompt-to-image UI controller: it owns the
// Idle/Busy state and the rendered surfaces of one UI session, and issues at
// most one generation request at a time.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/estampa/internal/messages"
	"github.com/snappy-loop/estampa/internal/models"
)

// publishTimeout bounds how long event publishing may delay Submit.
const publishTimeout = 5 * time.Second

var (
	// ErrBusy is returned by Submit while a request is in flight.
	ErrBusy = errors.New("generation already in progress")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("controller closed")
	// ErrDiscarded is returned when the response arrived after Close.
	ErrDiscarded = errors.New("generation response discarded")
)

// Generator turns a prompt into images (the external image generation API).
type Generator interface {
	GenerateImages(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
}

// EventPublisher receives one event per completed request. May be nil.
type EventPublisher interface {
	PublishGeneration(ctx context.Context, evt *models.GenerationEvent) error
}

// ValidationError means the prompt was empty or whitespace-only.
type ValidationError struct {
	Message string // user-facing text
}

func (e *ValidationError) Error() string {
	return "validation error: prompt is empty"
}

// GenerationError wraps any failure of the generation call, including a
// successful call that returned no image.
type GenerationError struct {
	RequestID uuid.UUID
	Message   string // user-facing text; never contains Err details
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s failed: %v", e.RequestID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// KeyEvent is a key press in the prompt field.
type KeyEvent struct {
	Key      string `json:"key"`
	ShiftKey bool   `json:"shift_key"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithModel sets the model identifier sent with every request.
func WithModel(model string) Option {
	return func(c *Controller) { c.model = model }
}

// WithPublisher sets the generation event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithTimeout bounds each generation call. Zero waits indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithRenderer registers fn as with OnRender.
func WithRenderer(fn func(models.View)) Option {
	return func(c *Controller) { c.renderers = append(c.renderers, fn) }
}

// Controller mediates between user input, the generator and the surfaces.
type Controller struct {
	gen       Generator
	msgs      *messages.Catalog
	model     string
	publisher EventPublisher
	timeout   time.Duration

	mu        sync.Mutex
	view      models.View
	current   uuid.UUID // in-flight request; uuid.Nil when idle
	closed    bool
	renderers []func(models.View)
}

// New creates an idle controller showing the placeholder hint.
func New(gen Generator, msgs *messages.Catalog, opts ...Option) *Controller {
	if msgs == nil {
		msgs = messages.Default()
	}
	c := &Controller{
		gen:  gen,
		msgs: msgs,
		view: models.View{
			State:              models.StateIdle,
			PlaceholderVisible: true,
			PlaceholderText:    msgs.Get(messages.Placeholder),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnRender registers fn to receive a snapshot after every surface change.
// Snapshots are delivered in order, under the controller lock: fn must not
// call back into the Controller and must not block, since View, Close and
// Submit wait for it. Slow sinks should hand the snapshot off (see the
// WebSocket handler's mailbox).
func (c *Controller) OnRender(fn func(models.View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderers = append(c.renderers, fn)
}

// View returns the current surfaces.
func (c *Controller) View() models.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// State returns Idle or Busy.
func (c *Controller) State() models.UIState {
	return c.View().State
}

// Submit validates raw, then runs one generation request and renders the
// outcome. It blocks until the generator returns. The controller is Idle
// again when Submit returns, whatever the outcome.
func (c *Controller) Submit(ctx context.Context, raw string) error {
	prompt, ok := models.NewPrompt(raw)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.view.State == models.StateBusy {
		inFlight := c.current
		c.mu.Unlock()
		log.Debug().Str("request_id", inFlight.String()).Msg("Submit ignored while busy")
		return ErrBusy
	}
	if !ok {
		c.showPlaceholder(messages.Validation)
		c.render()
		c.mu.Unlock()
		return &ValidationError{Message: c.msgs.Get(messages.Validation)}
	}

	req := models.NewGenerationRequest(c.model, prompt)
	c.current = req.ID
	c.setBusy(req.ID)
	c.render()
	c.mu.Unlock()

	start := time.Now()
	img, err := c.generate(ctx, req)
	elapsed := time.Since(start)

	evt := &models.GenerationEvent{
		RequestID:    req.ID,
		Model:        req.Model,
		PromptLength: utf8.RuneCountInString(string(prompt)),
		DurationMs:   elapsed.Milliseconds(),
		FinishedAt:   time.Now(),
	}
	if err != nil {
		evt.Error = err.Error()
	}

	c.mu.Lock()
	if c.current != req.ID {
		c.mu.Unlock()
		log.Warn().
			Str("request_id", req.ID.String()).
			Dur("elapsed", elapsed).
			Msg("Discarding generation response for closed session")
		evt.Outcome = models.OutcomeDiscarded
		c.publish(ctx, evt)
		return ErrDiscarded
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("request_id", req.ID.String()).
			Str("model", req.Model).
			Dur("elapsed", elapsed).
			Msg("Error generating image")
		c.showPlaceholder(messages.Generation)
		evt.Outcome = models.OutcomeFailed
	} else {
		c.showImage(models.DataURI(req.OutputMIMEType, img.ImageBytesBase64))
		evt.Outcome = models.OutcomeSucceeded
	}
	c.current = uuid.Nil
	c.setIdle()
	c.render()
	c.mu.Unlock()

	c.publish(ctx, evt)

	if err != nil {
		return &GenerationError{RequestID: req.ID, Message: c.msgs.Get(messages.Generation), Err: err}
	}
	return nil
}

// KeyDown is the keyboard trigger: Enter without Shift submits raw.
// handled reports that the key was consumed and no newline must be inserted.
func (c *Controller) KeyDown(ctx context.Context, ev KeyEvent, raw string) (handled bool, err error) {
	if ev.Key != "Enter" || ev.ShiftKey {
		return false, nil
	}
	return true, c.Submit(ctx, raw)
}

// Close ends the session. An in-flight response arriving later is dropped
// and further submits fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.current = uuid.Nil
	c.setIdle()
	c.renderers = nil
}

func (c *Controller) generate(ctx context.Context, req models.GenerationRequest) (models.GeneratedImage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	result, err := c.gen.GenerateImages(ctx, req)
	if err != nil {
		return models.GeneratedImage{}, err
	}
	return result.First()
}

func (c *Controller) publish(ctx context.Context, evt *models.GenerationEvent) {
	if c.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := c.publisher.PublishGeneration(ctx, evt); err != nil {
		log.Warn().Err(err).Str("request_id", evt.RequestID.String()).Msg("Failed to publish generation event")
	}
}

// Surface transitions. Callers hold c.mu.

func (c *Controller) setBusy(id uuid.UUID) {
	c.view.State = models.StateBusy
	c.view.TriggerDisabled = true
	c.view.LoaderVisible = true
	c.view.PlaceholderVisible = false
	c.view.ImageVisible = false
	c.view.AriaBusy = true
	c.view.RequestID = &id
}

// setIdle leaves placeholder and image as they are.
func (c *Controller) setIdle() {
	c.view.State = models.StateIdle
	c.view.TriggerDisabled = false
	c.view.LoaderVisible = false
	c.view.AriaBusy = false
}

// showPlaceholder shows the catalog text for kind; any kind but the hint is an error.
func (c *Controller) showPlaceholder(kind messages.Kind) {
	c.view.PlaceholderVisible = true
	c.view.PlaceholderText = c.msgs.Get(kind)
	c.view.PlaceholderError = kind != messages.Placeholder
	c.view.ImageVisible = false
	c.view.ImageSrc = ""
}

func (c *Controller) showImage(src string) {
	c.view.ImageSrc = src
	c.view.ImageVisible = true
	c.view.PlaceholderVisible = false
}

func (c *Controller) render() {
	for _, fn := range c.renderers {
		fn(c.view)
	}
}
