package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/estampa/internal/controller"
	"github.com/snappy-loop/estampa/internal/models"
)

const (
	wsIdleTimeout  = 60 * time.Minute
	wsWriteTimeout = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsInMessage is the JSON shape sent from the page.
type wsInMessage struct {
	Type     string `json:"type"` // submit, keydown
	Prompt   string `json:"prompt"`
	Key      string `json:"key,omitempty"`
	ShiftKey bool   `json:"shift_key,omitempty"`
}

// wsOutMessage is the JSON shape sent to the page.
type wsOutMessage struct {
	Type  string       `json:"type"` // view, error
	View  *models.View `json:"view,omitempty"`
	Error string       `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(v wsOutMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		log.Debug().Err(err).Msg("ws write")
	}
}

// viewMailbox holds the latest unsent view. put never blocks, so a stalled
// client cannot hold the controller lock; views queued behind a slow write
// collapse to the newest one, never reordered.
type viewMailbox struct {
	mu      sync.Mutex
	pending *models.View
	ready   chan struct{}
}

func newViewMailbox() *viewMailbox {
	return &viewMailbox{ready: make(chan struct{}, 1)}
}

func (m *viewMailbox) put(v models.View) {
	m.mu.Lock()
	m.pending = &v
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *viewMailbox) take() (models.View, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return models.View{}, false
	}
	v := *m.pending
	m.pending = nil
	return v, true
}

// WS handles GET /ws: one UI session per connection. The controller renders
// every surface change back to the page as a view message.
func (h *Handler) WS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	out := &wsConn{conn: conn}

	ctx, cancel := context.WithCancel(r.Context())
	views := newViewMailbox()
	ctrl := h.newController(controller.WithRenderer(views.put))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-views.ready:
				if v, ok := views.take(); ok {
					out.send(wsOutMessage{Type: "view", View: &v})
				}
			}
		}
	}()

	var inflight sync.WaitGroup
	defer func() {
		cancel()
		ctrl.Close()
		inflight.Wait()
		<-writerDone
		conn.Close()
	}()

	views.put(ctrl.View())

	conn.SetReadLimit(h.wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("ws read")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))

		var in wsInMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			out.send(wsOutMessage{Type: "error", Error: "invalid JSON: " + err.Error()})
			continue
		}

		var run func() error
		switch in.Type {
		case "submit":
			run = func() error { return ctrl.Submit(ctx, in.Prompt) }
		case "keydown":
			ev := controller.KeyEvent{Key: in.Key, ShiftKey: in.ShiftKey}
			run = func() error {
				_, err := ctrl.KeyDown(ctx, ev, in.Prompt)
				return err
			}
		default:
			out.send(wsOutMessage{Type: "error", Error: "expected type: submit or keydown"})
			continue
		}

		// Off the read loop, so a second trigger while busy reaches the guard.
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			if err := run(); errors.Is(err, controller.ErrBusy) {
				out.send(wsOutMessage{Type: "error", Error: "busy"})
			}
		}()
	}
}
