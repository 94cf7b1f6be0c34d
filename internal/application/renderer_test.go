package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quality-vision/internal/domain/entity"
	"quality-vision/pkg/log"
)

func newTestRenderer(frame *fixedFrame, surface *recordingSurface, clock *fakeClock) *OverlayRenderer {
	r := NewOverlayRenderer(frame, surface, time.Millisecond, log.Discard())
	r.now = clock.Now
	return r
}

func overlayDefect(id string, c entity.Category, ts time.Time) entity.Defect {
	return entity.Defect{
		ID:         id,
		Category:   c,
		Area:       entity.DefectArea{X: 128, Y: 144, Width: 256, Height: 72},
		Frame:      entity.FrameSize{Width: 1280, Height: 720},
		Confidence: 0.875,
		Timestamp:  ts,
	}
}

func TestOpacity(t *testing.T) {
	require.Equal(t, 1.0, Opacity(0))
	require.InDelta(t, 0.5, Opacity(2500*time.Millisecond), 1e-12)
	require.Equal(t, 0.3, Opacity(4*time.Second))
	require.Equal(t, 0.3, Opacity(time.Minute))
}

func TestOverlayRenderer_TickWaitsForDimensions(t *testing.T) {
	frame := &fixedFrame{}
	surface := &recordingSurface{width: 640, height: 360}
	clock := newFakeClock()
	r := newTestRenderer(frame, surface, clock)
	r.Add(overlayDefect("a", entity.CategoryTornPaper, clock.Now()))

	require.False(t, r.Tick())
	_, presents := surface.snapshot()
	require.Equal(t, 0, presents)

	// Поверхность без размеров тоже не готова.
	frame.set(1280, 720)
	surface.mu.Lock()
	surface.width, surface.height = 0, 0
	surface.mu.Unlock()
	require.False(t, r.Tick())

	surface.mu.Lock()
	surface.width, surface.height = 640, 360
	surface.mu.Unlock()
	require.True(t, r.Tick())
	_, presents = surface.snapshot()
	require.Equal(t, 1, presents)
}

func TestOverlayRenderer_DrawsScaledBoxAndLabel(t *testing.T) {
	frame := &fixedFrame{}
	frame.set(1280, 720)
	surface := &recordingSurface{width: 640, height: 360}
	clock := newFakeClock()
	r := newTestRenderer(frame, surface, clock)
	r.Add(overlayDefect("a", entity.CategoryFilterDefect, clock.Now()))

	clock.Advance(2500 * time.Millisecond)
	require.True(t, r.Tick())

	strokes := surface.opsOfKind("stroke")
	require.Len(t, strokes, 1)
	require.InDelta(t, 64.0, strokes[0].x, 1e-9)
	require.InDelta(t, 72.0, strokes[0].y, 1e-9)
	require.InDelta(t, 128.0, strokes[0].w, 1e-9)
	require.InDelta(t, 36.0, strokes[0].h, 1e-9)
	require.Equal(t, entity.CategoryFilterDefect.Color(), strokes[0].color)
	require.InDelta(t, 0.5, strokes[0].opacity, 1e-9)

	fills := surface.opsOfKind("fill")
	require.Len(t, fills, 1)
	label := "Filter Defect 87.5%"
	require.InDelta(t, float64(len(label)*7)+10, fills[0].w, 1e-9)
	require.InDelta(t, 25.0, fills[0].h, 1e-9)
	require.InDelta(t, 72.0-25, fills[0].y, 1e-9)

	texts := surface.opsOfKind("text")
	require.Len(t, texts, 1)
	require.Equal(t, label, texts[0].text)
	require.InDelta(t, 69.0, texts[0].x, 1e-9)
	require.InDelta(t, 64.0, texts[0].y, 1e-9)
}

func TestOverlayRenderer_PrunesAtDisplayLifetime(t *testing.T) {
	frame := &fixedFrame{}
	frame.set(1280, 720)
	surface := &recordingSurface{width: 1280, height: 720}
	clock := newFakeClock()
	r := newTestRenderer(frame, surface, clock)

	r.Add(overlayDefect("old", entity.CategoryTornPaper, clock.Now()))
	clock.Advance(1 * time.Second)
	r.Add(overlayDefect("new", entity.CategoryEndDefect, clock.Now()))
	require.Equal(t, 2, r.ActiveCount())

	clock.Advance(4 * time.Second) // "old" ровно 5000ms
	require.True(t, r.Tick())
	require.Len(t, surface.opsOfKind("stroke"), 1)
	require.Equal(t, entity.CategoryEndDefect.Color(), surface.opsOfKind("stroke")[0].color)
	require.Equal(t, 1, r.ActiveCount())

	clock.Advance(time.Second)
	require.True(t, r.Tick())
	require.Empty(t, surface.opsOfKind("stroke"))
	require.Equal(t, 0, r.ActiveCount())
}

func TestOverlayRenderer_AddPrunesStale(t *testing.T) {
	frame := &fixedFrame{}
	clock := newFakeClock()
	r := newTestRenderer(frame, &recordingSurface{}, clock)

	r.Add(overlayDefect("a", entity.CategoryTornPaper, clock.Now()))
	clock.Advance(6 * time.Second)
	r.Add(overlayDefect("b", entity.CategoryTornPaper, clock.Now()))

	require.Equal(t, 1, r.ActiveCount())
}

func TestOverlayRenderer_RunTicksOnlyWhileActive(t *testing.T) {
	frame := &fixedFrame{}
	frame.set(1280, 720)
	surface := &recordingSurface{width: 1280, height: 720}
	r := NewOverlayRenderer(frame, surface, time.Millisecond, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan entity.Event, 4)
	done := make(chan struct{})
	go func() {
		r.Run(ctx, events)
		close(done)
	}()

	d := overlayDefect("a", entity.CategoryColorAnomaly, time.Now())
	events <- entity.Event{Kind: entity.EventDefectDetected, Defect: &d}
	events <- entity.Event{Kind: entity.EventStateChanged, State: &entity.ControlState{Active: true}}

	require.Eventually(t, func() bool {
		_, presents := surface.snapshot()
		return presents >= 3
	}, 2*time.Second, time.Millisecond)
	require.Equal(t, 1, r.ActiveCount())

	events <- entity.Event{Kind: entity.EventStateChanged, State: &entity.ControlState{Active: false}}
	// Ждём, пока событие остановки будет обработано.
	require.Eventually(t, func() bool { return len(events) == 0 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	_, stopped := surface.snapshot()
	time.Sleep(50 * time.Millisecond)
	_, after := surface.snapshot()
	require.Equal(t, stopped, after)

	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("renderer did not exit")
	}
}

type switchableActivity struct {
	active atomic.Bool
}

func (a *switchableActivity) Active() bool { return a.active.Load() }

func TestOverlayRenderer_SweepPrunesWhilePaused(t *testing.T) {
	frame := &fixedFrame{}
	frame.set(1280, 720)
	clock := newFakeClock()
	r := newTestRenderer(frame, &recordingSurface{width: 1280, height: 720}, clock)

	r.Add(overlayDefect("a", entity.CategoryTornPaper, clock.Now()))
	require.Equal(t, 1, r.ActiveCount())

	clock.Advance(6 * time.Second)
	r.Sweep()
	require.Equal(t, 0, r.ActiveCount())
}

func TestOverlayRenderer_NotReadyTickStillPrunes(t *testing.T) {
	frame := &fixedFrame{}
	frame.set(1280, 720)
	clock := newFakeClock()
	r := newTestRenderer(frame, &recordingSurface{}, clock)

	r.Add(overlayDefect("a", entity.CategoryTornPaper, clock.Now()))
	clock.Advance(10 * time.Second)

	require.False(t, r.Tick())
	require.Equal(t, 0, r.ActiveCount())
}

func TestOverlayRenderer_RunSweepsWithoutTicking(t *testing.T) {
	frame := &fixedFrame{}
	frame.set(1280, 720)
	surface := &recordingSurface{width: 1280, height: 720}
	clock := newFakeClock()
	r := newTestRenderer(frame, surface, clock)
	r.sweep = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan entity.Event, 1)
	go r.Run(ctx, events)

	d := overlayDefect("a", entity.CategoryEndDefect, clock.Now())
	events <- entity.Event{Kind: entity.EventDefectDetected, Defect: &d}
	require.Eventually(t, func() bool { return r.ActiveCount() == 1 }, time.Second, time.Millisecond)

	clock.Advance(6 * time.Second)
	require.Eventually(t, func() bool { return r.ActiveCount() == 0 }, time.Second, time.Millisecond)

	_, presents := surface.snapshot()
	require.Equal(t, 0, presents)
}

func TestOverlayRenderer_FollowsActivityWithoutEvents(t *testing.T) {
	frame := &fixedFrame{}
	frame.set(1280, 720)
	surface := &recordingSurface{width: 1280, height: 720}
	r := NewOverlayRenderer(frame, surface, time.Millisecond, log.Discard())
	r.sweep = time.Millisecond
	activity := &switchableActivity{}
	r.Follow(activity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, make(chan entity.Event))

	// Событие state_changed потеряно: режим берётся из источника активности.
	activity.active.Store(true)
	require.Eventually(t, func() bool {
		_, presents := surface.snapshot()
		return presents >= 3
	}, 2*time.Second, time.Millisecond)

	activity.active.Store(false)
	time.Sleep(20 * time.Millisecond)
	_, stopped := surface.snapshot()
	time.Sleep(50 * time.Millisecond)
	_, after := surface.snapshot()
	require.Equal(t, stopped, after)
}
