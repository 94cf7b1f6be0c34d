package container

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	app "quality-vision/internal/application"
	"quality-vision/internal/domain/entity"
	"quality-vision/internal/domain/port"
)

const (
	overlaySubscriber = "overlay"
	overlayBuffer     = 256
)

// Deps внешние зависимости ядра
type Deps struct {
	Frames      port.FrameSource
	Surface     port.Surface
	Random      port.RandomSource
	Subscribers port.SubscriberRepository
	Log         *logrus.Logger

	Settings        app.Settings
	RenderInterval  time.Duration
	AlertsPerSecond float64
}

type Container struct {
	Bus               *app.EventBus
	Detector          *app.SyntheticDetector
	Renderer          *app.OverlayRenderer
	Alerts            *app.AlertDispatcher
	Controller        *app.Controller
	SubscriberService *app.SubscriberService

	log           *logrus.Logger
	overlayEvents <-chan entity.Event
}

func New(deps Deps) (*Container, error) {
	if deps.Frames == nil || deps.Surface == nil || deps.Random == nil || deps.Subscribers == nil {
		return nil, errors.New("container: missing dependency")
	}

	bus := app.NewEventBus()
	detector := app.NewSyntheticDetector(deps.Frames, deps.Random, deps.Log)
	renderer := app.NewOverlayRenderer(deps.Frames, deps.Surface, deps.RenderInterval, deps.Log)
	alerts := app.NewAlertDispatcher(deps.Log, deps.AlertsPerSecond)

	controller, err := app.NewController(detector, bus, alerts, deps.Log, deps.Settings)
	if err != nil {
		return nil, err
	}

	renderer.Follow(controller)

	events, err := bus.Subscribe(overlaySubscriber, overlayBuffer)
	if err != nil {
		return nil, err
	}

	return &Container{
		Bus:               bus,
		Detector:          detector,
		Renderer:          renderer,
		Alerts:            alerts,
		Controller:        controller,
		SubscriberService: app.NewSubscriberService(deps.Subscribers),
		log:               deps.Log,
		overlayEvents:     events,
	}, nil
}

// Run запускает контроллер, рендерер и доставку уведомлений до отмены ctx.
// Уведомители подключаются через Alerts.AddNotifier до вызова Run.
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.Controller.Run(ctx)
		return nil
	})
	g.Go(func() error {
		c.Renderer.Run(ctx, c.overlayEvents)
		return nil
	})
	g.Go(func() error {
		c.Alerts.Run(ctx)
		return nil
	})

	err := g.Wait()

	if stats, ok := c.Bus.Stats(overlaySubscriber); ok && stats.Dropped > 0 {
		c.log.WithField("dropped", stats.Dropped).Warn("Overlay missed events")
	}
	c.Bus.Close()
	c.log.WithField("published", c.Bus.Published()).Info("Core stopped")
	return err
}
