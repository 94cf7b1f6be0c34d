package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppPort  string `validate:"required,numeric"`
	AppEnv   string
	LogLevel string `validate:"omitempty,oneof=trace debug info warn warning error"`
	LogFile  string

	DefaultSensitivity int  `validate:"min=10,max=100"`
	AlertsEnabled      bool

	CameraDevice  int `validate:"min=-1"`
	FrameWidth    int `validate:"min=1"`
	FrameHeight   int `validate:"min=1"`
	CameraWarmup  time.Duration
	OverlayWidth  int `validate:"min=1"`
	OverlayHeight int `validate:"min=1"`
	RenderFPS     int `validate:"min=1,max=120"`
	RandomSeed    uint64

	TelegramToken   string
	AlertsPerSecond float64 `validate:"gt=0"`

	RedisAddress  string
	RedisPassword string
	RedisDB       int `validate:"min=0"`
	RedisChannel  string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	r := envReader{}
	cfg := &Config{
		AppPort:  r.getString("APP_PORT", "3000"),
		AppEnv:   r.getString("APP_ENV", "development"),
		LogLevel: r.getString("LOG_LEVEL", "debug"),
		LogFile:  os.Getenv("LOG_FILE"),

		DefaultSensitivity: r.getInt("DEFAULT_SENSITIVITY", 50),
		AlertsEnabled:      r.getBool("ALERTS_ENABLED", true),

		CameraDevice: r.getInt("CAMERA_DEVICE", -1),
		FrameWidth:   r.getInt("FRAME_WIDTH", 1280),
		FrameHeight:  r.getInt("FRAME_HEIGHT", 720),
		CameraWarmup: r.getDuration("CAMERA_WARMUP", 500*time.Millisecond),
		RenderFPS:    r.getInt("RENDER_FPS", 30),
		RandomSeed:   uint64(r.getInt("RANDOM_SEED", 0)),

		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		AlertsPerSecond: r.getFloat("ALERTS_PER_SECOND", 1),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       r.getInt("REDIS_DB", 0),
		RedisChannel:  r.getString("REDIS_CHANNEL", "quality-vision:events"),
	}
	// Оверлей по умолчанию совпадает с кадром.
	cfg.OverlayWidth = r.getInt("OVERLAY_WIDTH", cfg.FrameWidth)
	cfg.OverlayHeight = r.getInt("OVERLAY_HEIGHT", cfg.FrameHeight)

	if r.err != nil {
		return nil, r.err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// RenderInterval период перерисовки оверлея.
func (c *Config) RenderInterval() time.Duration {
	return time.Second / time.Duration(c.RenderFPS)
}

// envReader читает переменные окружения и запоминает первую ошибку разбора.
type envReader struct {
	err error
}

func (r *envReader) getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (r *envReader) getInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *envReader) getFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return f
}

func (r *envReader) getBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func (r *envReader) getDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

func (r *envReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("parse %s: %w", key, err)
	}
}
