package app

import (
	"context"
	"image/color"
	"sync"
	"time"

	"quality-vision/internal/domain/entity"
)

// scriptedRandom отдаёт заданные значения по кругу.
type scriptedRandom struct {
	mu     sync.Mutex
	values []float64
	pos    int
}

func newScriptedRandom(values ...float64) *scriptedRandom {
	return &scriptedRandom{values: values}
}

func (r *scriptedRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.values[r.pos%len(r.values)]
	r.pos++
	return v
}

// fixedFrame источник кадров с заданными размерами.
type fixedFrame struct {
	mu   sync.Mutex
	size entity.FrameSize
}

func (f *fixedFrame) FrameSize() entity.FrameSize {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

func (f *fixedFrame) set(w, h int) {
	f.mu.Lock()
	f.size = entity.FrameSize{Width: w, Height: h}
	f.mu.Unlock()
}

// fakeClock ручные часы для тестов.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// immediateAfter срабатывает без ожидания.
func immediateAfter(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

type drawOp struct {
	kind    string
	x, y    float64
	w, h    float64
	color   color.RGBA
	opacity float64
	text    string
}

// recordingSurface запоминает вызовы рисования последнего кадра.
type recordingSurface struct {
	mu       sync.Mutex
	width    int
	height   int
	ops      []drawOp
	presents int
}

func (s *recordingSurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *recordingSurface) Clear() {
	s.mu.Lock()
	s.ops = nil
	s.mu.Unlock()
}

func (s *recordingSurface) StrokeRect(x, y, w, h, _ float64, c color.RGBA, opacity float64) {
	s.add(drawOp{kind: "stroke", x: x, y: y, w: w, h: h, color: c, opacity: opacity})
}

func (s *recordingSurface) FillRect(x, y, w, h float64, c color.RGBA, opacity float64) {
	s.add(drawOp{kind: "fill", x: x, y: y, w: w, h: h, color: c, opacity: opacity})
}

func (s *recordingSurface) MeasureText(text string) float64 {
	return float64(len(text) * 7)
}

func (s *recordingSurface) FillText(text string, x, y float64, c color.RGBA, opacity float64) {
	s.add(drawOp{kind: "text", x: x, y: y, text: text, color: c, opacity: opacity})
}

func (s *recordingSurface) Present() {
	s.mu.Lock()
	s.presents++
	s.mu.Unlock()
}

func (s *recordingSurface) add(op drawOp) {
	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()
}

func (s *recordingSurface) snapshot() ([]drawOp, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]drawOp(nil), s.ops...), s.presents
}

func (s *recordingSurface) opsOfKind(kind string) []drawOp {
	ops, _ := s.snapshot()
	var out []drawOp
	for _, op := range ops {
		if op.kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// recordingNotifier запоминает доставленные уведомления.
type recordingNotifier struct {
	mu         sync.Mutex
	alerts     []entity.Alert
	permission entity.Permission
	requests   int
	err        error
}

func (n *recordingNotifier) Notify(_ context.Context, alert entity.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return n.err
}

func (n *recordingNotifier) RequestPermission(context.Context) entity.Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests++
	if n.permission == "" {
		return entity.PermissionGranted
	}
	return n.permission
}

func (n *recordingNotifier) delivered() []entity.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]entity.Alert(nil), n.alerts...)
}

func (n *recordingNotifier) permissionRequests() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.requests
}
