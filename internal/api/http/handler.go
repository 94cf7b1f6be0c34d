package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	app "quality-vision/internal/application"
	"quality-vision/internal/domain/entity"
)

const requestTimeout = 5 * time.Second

// Controls команды панели управления
type Controls interface {
	Toggle(ctx context.Context) (bool, error)
	Reset(ctx context.Context) error
	ClearLog(ctx context.Context) error
	SetSensitivity(ctx context.Context, value int) error
	ToggleAlerts(ctx context.Context) (bool, error)
	State(ctx context.Context) (entity.ControlState, error)
	Statistics(ctx context.Context) (entity.Statistics, error)
	History(ctx context.Context, limit int) ([]entity.Defect, error)
}

// Overlay растровая поверхность оверлея
type Overlay interface {
	PNG() ([]byte, error)
	Resize(width, height int)
}

// ActiveCounter число рамок, видимых на оверлее
type ActiveCounter interface {
	ActiveCount() int
}

// Events подписка на шину событий
type Events interface {
	Subscribe(id string, buffer int) (<-chan entity.Event, error)
	Unsubscribe(id string)
}

// Highlighter кадр камеры с нарисованными рамками
type Highlighter interface {
	Highlight(defects []entity.Defect) ([]byte, error)
}

type Handler struct {
	log         *logrus.Logger
	validator   *validator.Validate
	controls    Controls
	overlay     Overlay
	counter     ActiveCounter
	events      Events
	highlighter Highlighter
}

func NewHandler(log *logrus.Logger, controls Controls, overlay Overlay, counter ActiveCounter, events Events) *Handler {
	return &Handler{
		log:       log,
		validator: validator.New(),
		controls:  controls,
		overlay:   overlay,
		counter:   counter,
		events:    events,
	}
}

// WithHighlighter подключает снимки с камеры. Без него /frame.jpg отвечает 503.
func (h *Handler) WithHighlighter(hl Highlighter) *Handler {
	h.highlighter = hl
	return h
}

func (h *Handler) Start(srv fiber.Router) {
	srv.Get("/state", h.GetState)
	srv.Post("/detection/toggle", h.ToggleDetection)
	srv.Post("/detection/reset", h.ResetDetection)
	srv.Get("/defects", h.ListDefects)
	srv.Delete("/defects", h.ClearDefects)
	srv.Put("/sensitivity", h.SetSensitivity)
	srv.Post("/alerts/toggle", h.ToggleAlerts)
	srv.Get("/statistics", h.GetStatistics)
	srv.Get("/overlay.png", h.GetOverlay)
	srv.Put("/overlay/size", h.ResizeOverlay)
	srv.Get("/frame.jpg", h.GetFrame)

	srv.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	srv.Get("/ws", websocket.New(h.stream))
}

func (h *Handler) GetState(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(ctx.UserContext(), requestTimeout)
	defer cancel()

	st, err := h.controls.State(c)
	if err != nil {
		return h.fail(ctx, err, "get_state")
	}
	return ctx.JSON(st)
}

func (h *Handler) ToggleDetection(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(ctx.UserContext(), requestTimeout)
	defer cancel()

	active, err := h.controls.Toggle(c)
	if err != nil {
		return h.fail(ctx, err, "toggle_detection")
	}
	return ctx.JSON(ToggleResponse{Active: active})
}

func (h *Handler) ResetDetection(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(ctx.UserContext(), requestTimeout)
	defer cancel()

	if err := h.controls.Reset(c); err != nil {
		return h.fail(ctx, err, "reset_detection")
	}
	return h.GetState(ctx)
}

func (h *Handler) ListDefects(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(ctx.UserContext(), requestTimeout)
	defer cancel()

	limit := ctx.QueryInt("limit", 0)
	if limit < 0 {
		return h.badRequest(ctx, errors.New("limit must not be negative"))
	}

	history, err := h.controls.History(c, limit)
	if err != nil {
		return h.fail(ctx, err, "list_defects")
	}

	resp := make([]DefectResponse, 0, len(history))
	for _, d := range history {
		resp = append(resp, newDefectResponse(d))
	}
	return ctx.JSON(resp)
}

func (h *Handler) ClearDefects(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(ctx.UserContext(), requestTimeout)
	defer cancel()

	if err := h.controls.ClearLog(c); err != nil {
		return h.fail(ctx, err, "clear_defects")
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) SetSensitivity(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(ctx.UserContext(), requestTimeout)
	defer cancel()

	var req SensitivityRequest
	if err := ctx.BodyParser(&req); err != nil {
		return h.badRequest(ctx, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return h.badRequest(ctx, err)
	}

	if err := h.controls.SetSensitivity(c, req.Value); err != nil {
		return h.fail(ctx, err, "set_sensitivity")
	}
	return h.GetState(ctx)
}

func (h *Handler) ToggleAlerts(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(ctx.UserContext(), requestTimeout)
	defer cancel()

	enabled, err := h.controls.ToggleAlerts(c)
	if err != nil {
		return h.fail(ctx, err, "toggle_alerts")
	}
	return ctx.JSON(AlertsResponse{AlertsEnabled: enabled})
}

func (h *Handler) GetStatistics(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(ctx.UserContext(), requestTimeout)
	defer cancel()

	stats, err := h.controls.Statistics(c)
	if err != nil {
		return h.fail(ctx, err, "get_statistics")
	}

	resp := StatisticsResponse{Statistics: stats}
	if h.counter != nil {
		resp.ActiveDetections = h.counter.ActiveCount()
	}
	return ctx.JSON(resp)
}

func (h *Handler) GetOverlay(ctx *fiber.Ctx) error {
	data, err := h.overlay.PNG()
	if err != nil {
		return h.fail(ctx, err, "encode_overlay")
	}
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	ctx.Type("png")
	return ctx.Send(data)
}

func (h *Handler) ResizeOverlay(ctx *fiber.Ctx) error {
	var req OverlaySizeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return h.badRequest(ctx, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return h.badRequest(ctx, err)
	}

	h.overlay.Resize(req.Width, req.Height)
	return ctx.JSON(req)
}

func (h *Handler) GetFrame(ctx *fiber.Ctx) error {
	if h.highlighter == nil {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "camera is not connected"})
	}

	c, cancel := context.WithTimeout(ctx.UserContext(), requestTimeout)
	defer cancel()

	history, err := h.controls.History(c, 0)
	if err != nil {
		return h.fail(ctx, err, "get_frame")
	}

	now := time.Now()
	visible := history[:0]
	for _, d := range history {
		if d.Age(now) < entity.DisplayLifetime {
			visible = append(visible, d)
		}
	}

	data, err := h.highlighter.Highlight(visible)
	if err != nil {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	ctx.Type("jpg")
	return ctx.Send(data)
}

func (h *Handler) badRequest(ctx *fiber.Ctx, err error) error {
	h.log.WithFields(logrus.Fields{
		"request_id": GetRequestID(ctx),
		"path":       ctx.Path(),
		"error":      err.Error(),
	}).Debug("Request rejected")
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func (h *Handler) fail(ctx *fiber.Ctx, err error, operation string) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, app.ErrSensitivityOutOfRange):
		status = fiber.StatusBadRequest
	case errors.Is(err, app.ErrControllerStopped):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusRequestTimeout
	}

	h.log.WithFields(logrus.Fields{
		"request_id": GetRequestID(ctx),
		"path":       ctx.Path(),
		"operation":  operation,
		"status":     status,
		"error":      err.Error(),
	}).Warn("Operation failed")

	return ctx.Status(status).JSON(fiber.Map{"error": err.Error()})
}
