package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"quality-vision/internal/domain/entity"
)

var (
	ErrControllerStopped     = errors.New("controller is stopped")
	ErrSensitivityOutOfRange = fmt.Errorf("sensitivity must be between %d and %d", entity.MinSensitivity, entity.MaxSensitivity)
	ErrStaleActivation       = errors.New("detection belongs to a stopped activation")
)

// Settings начальные настройки панели управления
type Settings struct {
	Sensitivity   int
	AlertsEnabled bool
}

// Controller единственный владелец состояния: флага активности,
// чувствительности, флага уведомлений и истории обнаружений.
//
// Все изменения выполняются в горутине Run. Остальные горутины (детектор,
// HTTP, бот) отправляют команды через канал и получают копии данных.
type Controller struct {
	detector *SyntheticDetector
	bus      *EventBus
	alerts   *AlertDispatcher
	log      *logrus.Logger
	now      func() time.Time

	cmds chan func()
	done chan struct{}

	// activeFlag копия c.active для чтения из других горутин.
	activeFlag atomic.Bool

	// Поля ниже трогает только горутина Run.
	runCtx        context.Context
	active        bool
	sensitivity   int
	alertsEnabled bool
	history       []entity.Defect
	generation    uint64
	cancel        context.CancelFunc
}

// NewController создаёт контроллер. Run нужно запустить один раз.
func NewController(detector *SyntheticDetector, bus *EventBus, alerts *AlertDispatcher, log *logrus.Logger, settings Settings) (*Controller, error) {
	if settings.Sensitivity < entity.MinSensitivity || settings.Sensitivity > entity.MaxSensitivity {
		return nil, ErrSensitivityOutOfRange
	}
	return &Controller{
		detector:      detector,
		bus:           bus,
		alerts:        alerts,
		log:           log,
		now:           time.Now,
		cmds:          make(chan func()),
		done:          make(chan struct{}),
		sensitivity:   settings.Sensitivity,
		alertsEnabled: settings.AlertsEnabled,
	}, nil
}

// Run выполняет команды до отмены ctx. При выходе детекция останавливается.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	c.runCtx = ctx

	for {
		select {
		case <-ctx.Done():
			c.deactivate()
			return
		case cmd := <-c.cmds:
			cmd()
		}
	}
}

// do выполняет fn в горутине Run и ждёт завершения.
func (c *Controller) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		fn()
		close(finished)
	}

	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// Канал без буфера: команда уже принята и выполняется.
	<-finished
	return nil
}

// Toggle переключает детекцию и возвращает новое состояние флага.
func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	var active bool
	err := c.do(ctx, func() {
		if c.active {
			c.deactivate()
		} else {
			c.activate()
		}
		active = c.active
	})
	return active, err
}

// Start включает детекцию, если она выключена.
func (c *Controller) Start(ctx context.Context) error {
	return c.do(ctx, c.activate)
}

// Stop выключает детекцию. История сохраняется.
func (c *Controller) Stop(ctx context.Context) error {
	return c.do(ctx, c.deactivate)
}

// Reset очищает историю и принудительно выключает детекцию.
func (c *Controller) Reset(ctx context.Context) error {
	return c.do(ctx, func() {
		c.deactivate()
		c.clearHistory()
		c.log.Info("Detection reset")
	})
}

// ClearLog очищает историю, не трогая флаг активности.
func (c *Controller) ClearLog(ctx context.Context) error {
	return c.do(ctx, func() {
		c.clearHistory()
		c.log.Info("Defect log cleared")
	})
}

// SetSensitivity меняет чувствительность. Новое значение действует со
// следующего цикла детектора.
func (c *Controller) SetSensitivity(ctx context.Context, value int) error {
	if value < entity.MinSensitivity || value > entity.MaxSensitivity {
		return ErrSensitivityOutOfRange
	}
	return c.do(ctx, func() {
		if c.sensitivity == value {
			return
		}
		c.sensitivity = value
		c.publishState()
	})
}

// ToggleAlerts переключает уведомления и возвращает новое значение.
func (c *Controller) ToggleAlerts(ctx context.Context) (bool, error) {
	var enabled bool
	err := c.do(ctx, func() {
		c.alertsEnabled = !c.alertsEnabled
		enabled = c.alertsEnabled
		c.publishState()
	})
	return enabled, err
}

// SetAlerts включает или выключает уведомления.
func (c *Controller) SetAlerts(ctx context.Context, enabled bool) error {
	return c.do(ctx, func() {
		if c.alertsEnabled == enabled {
			return
		}
		c.alertsEnabled = enabled
		c.publishState()
	})
}

// State возвращает текущее состояние панели управления.
func (c *Controller) State(ctx context.Context) (entity.ControlState, error) {
	var st entity.ControlState
	err := c.do(ctx, func() { st = c.snapshotState() })
	return st, err
}

// Active флаг активности без обращения к горутине Run.
func (c *Controller) Active() bool {
	return c.activeFlag.Load()
}

// Statistics считает сводку по всей истории.
func (c *Controller) Statistics(ctx context.Context) (entity.Statistics, error) {
	var stats entity.Statistics
	err := c.do(ctx, func() { stats = Aggregate(c.history, c.now()) })
	return stats, err
}

// History возвращает копию истории в порядке обнаружения. При limit > 0
// возвращаются только последние limit записей.
func (c *Controller) History(ctx context.Context, limit int) ([]entity.Defect, error) {
	var out []entity.Defect
	err := c.do(ctx, func() {
		src := c.history
		if limit > 0 && len(src) > limit {
			src = src[len(src)-limit:]
		}
		out = make([]entity.Defect, len(src))
		copy(out, src)
	})
	return out, err
}

func (c *Controller) activate() {
	if c.active {
		return
	}
	c.active = true
	c.activeFlag.Store(true)
	c.generation++

	actx, cancel := context.WithCancel(c.runCtx)
	c.cancel = cancel
	go c.detector.Run(actx, activation{c: c, generation: c.generation})

	c.log.WithFields(logrus.Fields{
		"generation":  c.generation,
		"sensitivity": c.sensitivity,
	}).Info("Detection started")

	c.publishState()
	if c.alerts != nil {
		c.alerts.RequestPermission(c.runCtx)
	}
}

func (c *Controller) deactivate() {
	if !c.active {
		return
	}
	c.active = false
	c.activeFlag.Store(false)
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	c.log.WithField("generation", c.generation).Info("Detection stopped")
	c.publishState()
}

func (c *Controller) clearHistory() {
	clear(c.history)
	c.history = c.history[:0]
	c.bus.Publish(entity.Event{Kind: entity.EventHistoryCleared, At: c.now()})
}

// record принимает запись от детектора текущей активации.
func (c *Controller) record(generation uint64, d entity.Defect) bool {
	if !c.active || generation != c.generation {
		return false
	}

	c.history = append(c.history, d)

	c.log.WithFields(logrus.Fields{
		"defect_id":  d.ID,
		"category":   d.Category,
		"confidence": d.ConfidencePercent(),
		"x":          int(d.Area.X),
		"y":          int(d.Area.Y),
	}).Info("Defect detected")

	emitted := d
	c.bus.Publish(entity.Event{Kind: entity.EventDefectDetected, Defect: &emitted, At: d.Timestamp})

	if c.alertsEnabled && c.alerts != nil {
		c.alerts.Dispatch(entity.NewAlert(d))
	}
	return true
}

func (c *Controller) snapshotState() entity.ControlState {
	return entity.ControlState{
		Active:        c.active,
		Sensitivity:   c.sensitivity,
		AlertsEnabled: c.alertsEnabled,
		HistorySize:   len(c.history),
	}
}

func (c *Controller) publishState() {
	st := c.snapshotState()
	c.bus.Publish(entity.Event{Kind: entity.EventStateChanged, State: &st, At: c.now()})
}

// activation связывает цикл детектора с поколением, в котором он запущен.
type activation struct {
	c          *Controller
	generation uint64
}

func (a activation) Sensitivity(ctx context.Context) (int, error) {
	var s int
	err := a.c.do(ctx, func() { s = a.c.sensitivity })
	return s, err
}

func (a activation) Emit(ctx context.Context, d entity.Defect) error {
	var accepted bool
	if err := a.c.do(ctx, func() { accepted = a.c.record(a.generation, d) }); err != nil {
		return err
	}
	if !accepted {
		return ErrStaleActivation
	}
	return nil
}
