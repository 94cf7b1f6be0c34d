package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"quality-vision/internal/domain/entity"
)

const (
	wsBuffer       = 64
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// stream отдаёт клиенту события шины. Первым сообщением уходит текущее
// состояние панели.
func (h *Handler) stream(c *websocket.Conn) {
	id := "ws-" + uuid.NewString()
	h.log.WithField("subscriber", id).Info("Event stream client connected")
	defer h.log.WithField("subscriber", id).Info("Event stream client disconnected")

	events, err := h.events.Subscribe(id, wsBuffer)
	if err != nil {
		h.log.Errorf("Error subscribing to events: %v", err)
		_ = c.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer h.events.Unsubscribe(id)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	st, err := h.controls.State(ctx)
	cancel()
	if err == nil {
		if err := h.write(c, entity.Event{Kind: entity.EventStateChanged, State: &st, At: time.Now()}); err != nil {
			return
		}
	}

	closed := make(chan struct{})
	go h.readUntilClosed(c, closed)

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(c, ev); err != nil {
				return
			}
		case <-ping.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				h.log.Errorf("Error sending ping: %v", err)
				return
			}
		}
	}
}

func (h *Handler) write(c *websocket.Conn, ev entity.Event) error {
	if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		h.log.Errorf("Error setting write deadline: %v", err)
		return err
	}
	if err := c.WriteJSON(ev); err != nil {
		h.log.Errorf("Error writing JSON event: %v", err)
		return err
	}
	return nil
}

// readUntilClosed читает входящие кадры, чтобы обрабатывать pong и close.
func (h *Handler) readUntilClosed(c *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			return
		}
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Event stream error: %v", err)
			}
			return
		}
	}
}
