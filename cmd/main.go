package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"quality-vision/config"
	telegram "quality-vision/internal/api"
	httpapi "quality-vision/internal/api/http"
	app "quality-vision/internal/application"
	"quality-vision/internal/container"
	"quality-vision/internal/domain/port"
	"quality-vision/internal/infrastructure/broker"
	"quality-vision/internal/infrastructure/random"
	"quality-vision/internal/infrastructure/storage"
	"quality-vision/internal/infrastructure/vision"
	"quality-vision/pkg/log"
)

const (
	redisSubscriber = "redis"
	redisBuffer     = 256
	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := log.NewLogger(log.Options{
		Level: cfg.LogLevel,
		Env:   cfg.AppEnv,
		File:  cfg.LogFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Камера или имитация кадра
	var frames port.FrameSource = vision.NewSimulatedCamera(cfg.FrameWidth, cfg.FrameHeight, cfg.CameraWarmup)
	var camera *vision.Camera
	if cfg.CameraDevice >= 0 {
		camera, err = vision.OpenCamera(ctx, cfg.CameraDevice, logger)
		if err != nil {
			logger.WithField("error", err.Error()).Warn("Camera is unavailable, using simulated frames")
		} else {
			frames = camera
		}
	}

	canvas := vision.NewCanvas(cfg.OverlayWidth, cfg.OverlayHeight)

	core, err := container.New(container.Deps{
		Frames:      frames,
		Surface:     canvas,
		Random:      random.New(cfg.RandomSeed),
		Subscribers: storage.NewMemorySubscriberRepository(),
		Log:         logger,
		Settings: app.Settings{
			Sensitivity:   cfg.DefaultSensitivity,
			AlertsEnabled: cfg.AlertsEnabled,
		},
		RenderInterval:  cfg.RenderInterval(),
		AlertsPerSecond: cfg.AlertsPerSecond,
	})
	if err != nil {
		logger.Fatalf("Failed to build services: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, core.Controller, core.SubscriberService, logger)
		if err != nil {
			logger.Fatalf("Failed to create bot: %v", err)
		}
		core.Alerts.AddNotifier(bot)
		g.Go(func() error { return bot.Run(gctx) })
	} else {
		logger.Warn("TELEGRAM_TOKEN is not set, Telegram bot and alerts are disabled")
	}

	if cfg.RedisAddress != "" {
		publisher := broker.NewRedisPublisher(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannel, logger)
		defer publisher.Close()

		events, err := core.Bus.Subscribe(redisSubscriber, redisBuffer)
		if err != nil {
			logger.Fatalf("Failed to subscribe Redis publisher: %v", err)
		}
		g.Go(func() error {
			publisher.Run(gctx, events)
			return nil
		})
	}

	handler := httpapi.NewHandler(logger, core.Controller, canvas, core.Renderer, core.Bus)
	if camera != nil {
		handler.WithHighlighter(camera)
	}

	server, err := httpapi.NewServer(
		httpapi.WithFiber(httpapi.NewFiber()),
		httpapi.WithLogger(logger),
		httpapi.WithValidator(validator.New()),
		httpapi.WithHandler(handler),
	)
	if err != nil {
		logger.Fatal(err)
	}

	g.Go(func() error { return core.Run(gctx) })
	g.Go(func() error { return server.Run(cfg.AppPort) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("Server started successfully")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Server stopped with error: %v", err)
	}

	stop()
	if camera != nil {
		if err := camera.Close(); err != nil {
			logger.Errorf("Failed to close camera: %v", err)
		}
	}
}
