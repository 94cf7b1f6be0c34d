package app

import (
	"context"
	"image/color"
	"math"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"quality-vision/internal/domain/entity"
	"quality-vision/internal/domain/port"
)

const (
	overlayLineWidth   = 3.0
	labelHeight        = 25.0
	labelPadding       = 10.0
	labelTextOffsetX   = 5.0
	labelTextOffsetY   = 8.0
	minOverlayOpacity  = 0.3
	defaultRenderDelay = time.Second / 30
	sweepInterval      = time.Second
)

var labelTextColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// ActivitySource сообщает, идёт ли сейчас детекция.
type ActivitySource interface {
	Active() bool
}

// OverlayRenderer рисует недавние дефекты на прозрачной поверхности.
//
// Рабочий набор записей принадлежит только горутине Run: записи приходят
// событиями шины, а старше entity.DisplayLifetime отбрасываются раз в
// секунду и на каждом кадре. История контроллера при этом не меняется.
type OverlayRenderer struct {
	source   port.FrameSource
	surface  port.Surface
	log      *logrus.Logger
	interval time.Duration
	sweep    time.Duration
	now      func() time.Time
	activity ActivitySource

	working []entity.Defect
	active  atomic.Int64
	ticks   <-chan time.Time
	ticker  *time.Ticker
	waiting bool
}

// NewOverlayRenderer создаёт рендерер с частотой обновления interval.
func NewOverlayRenderer(source port.FrameSource, surface port.Surface, interval time.Duration, log *logrus.Logger) *OverlayRenderer {
	if interval <= 0 {
		interval = defaultRenderDelay
	}
	return &OverlayRenderer{
		source:   source,
		surface:  surface,
		log:      log,
		interval: interval,
		sweep:    sweepInterval,
		now:      time.Now,
	}
}

// Follow подключает источник флага активности. Run сверяется с ним при
// каждой чистке.
func (r *OverlayRenderer) Follow(a ActivitySource) {
	r.activity = a
}

// ActiveCount число записей, которые сейчас видны на оверлее.
func (r *OverlayRenderer) ActiveCount() int {
	return int(r.active.Load())
}

// Run обрабатывает события шины и, пока детекция активна, перерисовывает
// оверлей каждый кадр. Выход при отмене ctx или закрытии events.
func (r *OverlayRenderer) Run(ctx context.Context, events <-chan entity.Event) {
	defer r.stopTicking()

	sweep := time.NewTicker(r.sweep)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.handle(ev)
		case <-r.ticks:
			r.Tick()
		case <-sweep.C:
			r.Sweep()
		}
	}
}

// Sweep выбрасывает устаревшие записи независимо от того, идёт ли отрисовка,
// и сверяет режим отрисовки с источником активности.
func (r *OverlayRenderer) Sweep() {
	r.prune(r.now())

	if r.activity == nil {
		return
	}
	if r.activity.Active() {
		r.startTicking()
	} else {
		r.stopTicking()
	}
}

func (r *OverlayRenderer) handle(ev entity.Event) {
	switch ev.Kind {
	case entity.EventDefectDetected:
		if ev.Defect != nil {
			r.Add(*ev.Defect)
		}
	case entity.EventStateChanged:
		if ev.State == nil {
			return
		}
		if ev.State.Active {
			r.startTicking()
		} else {
			r.stopTicking()
		}
	}
}

// Add кладёт запись в рабочий набор, заодно выбрасывая устаревшие.
func (r *OverlayRenderer) Add(d entity.Defect) {
	r.working = append(r.working, d)
	r.prune(r.now())
}

// Tick один кадр оверлея. Возвращает false, если видео или поверхность ещё
// не отдали размеры: тогда ничего не рисуется и попытка повторится на
// следующем кадре. Устаревшие записи выбрасываются в любом случае.
func (r *OverlayRenderer) Tick() bool {
	now := r.now()
	r.prune(now)

	frame := r.source.FrameSize()
	width, height := r.surface.Size()
	if !frame.Ready() || width <= 0 || height <= 0 {
		if !r.waiting {
			r.log.Debug("Overlay surface is not ready, retrying on next frame")
			r.waiting = true
		}
		return false
	}
	r.waiting = false

	r.surface.Clear()
	for _, d := range r.working {
		r.draw(d, now, width, height)
	}
	r.surface.Present()
	return true
}

func (r *OverlayRenderer) draw(d entity.Defect, now time.Time, width, height int) {
	box := d.Normalized().Scale(width, height)
	opacity := Opacity(d.Age(now))
	c := d.Category.Color()

	r.surface.StrokeRect(box.X, box.Y, box.Width, box.Height, overlayLineWidth, c, opacity)

	label := d.OverlayLabel()
	chipWidth := r.surface.MeasureText(label) + labelPadding
	r.surface.FillRect(box.X, box.Y-labelHeight, chipWidth, labelHeight, c, opacity)
	r.surface.FillText(label, box.X+labelTextOffsetX, box.Y-labelTextOffsetY, labelTextColor, opacity)
}

// Opacity затухание рамки с возрастом, не ниже 0.3.
func Opacity(age time.Duration) float64 {
	return math.Max(minOverlayOpacity, 1-float64(age)/float64(entity.DisplayLifetime))
}

func (r *OverlayRenderer) prune(now time.Time) {
	kept := r.working[:0]
	for _, d := range r.working {
		if d.Age(now) < entity.DisplayLifetime {
			kept = append(kept, d)
		}
	}
	clear(r.working[len(kept):])
	r.working = kept
	r.active.Store(int64(len(kept)))
}

func (r *OverlayRenderer) startTicking() {
	if r.ticker != nil {
		return
	}
	r.ticker = time.NewTicker(r.interval)
	r.ticks = r.ticker.C
	r.Tick()
}

func (r *OverlayRenderer) stopTicking() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	r.ticker = nil
	r.ticks = nil
}
