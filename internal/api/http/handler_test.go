package httpapi

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	app "quality-vision/internal/application"
	"quality-vision/internal/domain/entity"
	"quality-vision/internal/infrastructure/vision"
	"quality-vision/pkg/log"
)

type fakeControls struct {
	state   entity.ControlState
	history []entity.Defect
	err     error
}

func (f *fakeControls) Toggle(context.Context) (bool, error) {
	f.state.Active = !f.state.Active
	return f.state.Active, f.err
}

func (f *fakeControls) Reset(context.Context) error {
	f.state.Active = false
	f.history = nil
	return f.err
}

func (f *fakeControls) ClearLog(context.Context) error {
	f.history = nil
	return f.err
}

func (f *fakeControls) SetSensitivity(_ context.Context, v int) error {
	if f.err != nil {
		return f.err
	}
	f.state.Sensitivity = v
	return nil
}

func (f *fakeControls) ToggleAlerts(context.Context) (bool, error) {
	f.state.AlertsEnabled = !f.state.AlertsEnabled
	return f.state.AlertsEnabled, f.err
}

func (f *fakeControls) State(context.Context) (entity.ControlState, error) {
	st := f.state
	st.HistorySize = len(f.history)
	return st, f.err
}

func (f *fakeControls) Statistics(context.Context) (entity.Statistics, error) {
	return app.Aggregate(f.history, time.Now()), f.err
}

func (f *fakeControls) History(_ context.Context, limit int) ([]entity.Defect, error) {
	src := f.history
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	return append([]entity.Defect(nil), src...), f.err
}

type fixedCounter int

func (c fixedCounter) ActiveCount() int { return int(c) }

type fakeHighlighter struct {
	got []entity.Defect
}

func (f *fakeHighlighter) Highlight(defects []entity.Defect) ([]byte, error) {
	f.got = defects
	return []byte{0xff, 0xd8, 0xff}, nil
}

func newTestServer(t *testing.T, controls *fakeControls) (*fiber.App, *vision.Canvas) {
	t.Helper()
	canvas := vision.NewCanvas(320, 180)
	h := NewHandler(log.Discard(), controls, canvas, fixedCounter(2), app.NewEventBus())

	srv, err := NewServer(
		WithFiber(NewFiber()),
		WithLogger(log.Discard()),
		WithHandler(h),
	)
	require.NoError(t, err)
	return srv.App(), canvas
}

func do(t *testing.T, a *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := a.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func sampleDefect(id string, age time.Duration) entity.Defect {
	return entity.Defect{
		ID:         id,
		Category:   entity.CategoryTornPaper,
		Area:       entity.DefectArea{X: 128, Y: 72, Width: 200, Height: 60},
		Frame:      entity.FrameSize{Width: 1280, Height: 720},
		Confidence: 0.912,
		Timestamp:  time.Now().Add(-age),
	}
}

func TestNewServer_RequiresHandler(t *testing.T) {
	_, err := NewServer(WithFiber(NewFiber()), WithLogger(log.Discard()))
	require.Error(t, err)
}

func TestHealthAndRequestID(t *testing.T) {
	a, _ := newTestServer(t, &fakeControls{})

	resp, _ := do(t, a, fiber.MethodGet, "/", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(RequestIDKey))

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(RequestIDKey, "req-42")
	resp, err := a.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "req-42", resp.Header.Get(RequestIDKey))
}

func TestToggleAndState(t *testing.T) {
	controls := &fakeControls{state: entity.ControlState{Sensitivity: 50, AlertsEnabled: true}}
	a, _ := newTestServer(t, controls)

	resp, body := do(t, a, fiber.MethodPost, "/api/v1/detection/toggle", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"active":true}`, string(body))

	resp, body = do(t, a, fiber.MethodGet, "/api/v1/state", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"active":true,"sensitivity":50,"alerts_enabled":true,"history_size":0}`, string(body))

	resp, body = do(t, a, fiber.MethodPost, "/api/v1/alerts/toggle", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"alerts_enabled":false}`, string(body))
}

func TestSetSensitivity(t *testing.T) {
	controls := &fakeControls{state: entity.ControlState{Sensitivity: 50}}
	a, _ := newTestServer(t, controls)

	for _, body := range []string{`{"value":5}`, `{"value":101}`, `{"value":0}`, `not json`} {
		resp, _ := do(t, a, fiber.MethodPut, "/api/v1/sensitivity", body)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
	}
	require.Equal(t, 50, controls.state.Sensitivity)

	resp, body := do(t, a, fiber.MethodPut, "/api/v1/sensitivity", `{"value":70}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"sensitivity":70`)
}

func TestDefectsListAndClear(t *testing.T) {
	controls := &fakeControls{history: []entity.Defect{
		sampleDefect("a", time.Second),
		sampleDefect("b", 0),
	}}
	a, _ := newTestServer(t, controls)

	resp, body := do(t, a, fiber.MethodGet, "/api/v1/defects?limit=1", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got []map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(body, &got))
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0]["id"])
	require.Equal(t, "Torn Paper 91.2%", got[0]["label"])
	normalized := got[0]["normalized"].(map[string]interface{})
	require.InDelta(t, 10.0, normalized["x"], 1e-9)
	area := got[0]["area"].(map[string]interface{})
	require.InDelta(t, 128.0, area["x"], 1e-9)

	resp, _ = do(t, a, fiber.MethodGet, "/api/v1/defects?limit=-1", "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, a, fiber.MethodDelete, "/api/v1/defects", "")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.Empty(t, controls.history)
}

func TestStatistics(t *testing.T) {
	controls := &fakeControls{history: []entity.Defect{sampleDefect("a", time.Second)}}
	a, _ := newTestServer(t, controls)

	resp, body := do(t, a, fiber.MethodGet, "/api/v1/statistics", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(body, &got))
	require.EqualValues(t, 1, got["total"])
	require.EqualValues(t, 98, got["quality_score"])
	require.Equal(t, "good", got["level"])
	require.EqualValues(t, 2, got["active_detections"])
}

func TestReset(t *testing.T) {
	controls := &fakeControls{
		state:   entity.ControlState{Active: true, Sensitivity: 50},
		history: []entity.Defect{sampleDefect("a", 0)},
	}
	a, _ := newTestServer(t, controls)

	resp, body := do(t, a, fiber.MethodPost, "/api/v1/detection/reset", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"active":false`)
	require.Contains(t, string(body), `"history_size":0`)
}

func TestOverlayPNGAndResize(t *testing.T) {
	a, canvas := newTestServer(t, &fakeControls{})

	resp, body := do(t, a, fiber.MethodGet, "/api/v1/overlay.png", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	img, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, 320, img.Bounds().Dx())

	resp, _ = do(t, a, fiber.MethodPut, "/api/v1/overlay/size", `{"width":0,"height":100}`)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, a, fiber.MethodPut, "/api/v1/overlay/size", `{"width":640,"height":360}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	w, h := canvas.Size()
	require.Equal(t, 640, w)
	require.Equal(t, 360, h)
}

func TestFrameRequiresCamera(t *testing.T) {
	controls := &fakeControls{history: []entity.Defect{
		sampleDefect("old", 10*time.Second),
		sampleDefect("new", time.Second),
	}}
	canvas := vision.NewCanvas(10, 10)
	h := NewHandler(log.Discard(), controls, canvas, nil, app.NewEventBus())
	srv, err := NewServer(WithFiber(NewFiber()), WithLogger(log.Discard()), WithHandler(h))
	require.NoError(t, err)

	resp, _ := do(t, srv.App(), fiber.MethodGet, "/api/v1/frame.jpg", "")
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	hl := &fakeHighlighter{}
	h.WithHighlighter(hl)
	resp, _ = do(t, srv.App(), fiber.MethodGet, "/api/v1/frame.jpg", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, hl.got, 1)
	require.Equal(t, "new", hl.got[0].ID)
}

func TestControllerStoppedMapsTo503(t *testing.T) {
	a, _ := newTestServer(t, &fakeControls{err: app.ErrControllerStopped})

	resp, body := do(t, a, fiber.MethodGet, "/api/v1/state", "")
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	require.Contains(t, string(body), app.ErrControllerStopped.Error())
}

func TestFailMapsSensitivityError(t *testing.T) {
	a, _ := newTestServer(t, &fakeControls{err: app.ErrSensitivityOutOfRange})

	resp, _ := do(t, a, fiber.MethodPut, "/api/v1/sensitivity", `{"value":50}`)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	a, _ := newTestServer(t, &fakeControls{})

	resp, _ := do(t, a, fiber.MethodGet, "/api/v1/ws", "")
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
