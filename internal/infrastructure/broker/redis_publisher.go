package broker

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"quality-vision/internal/domain/entity"
)

const (
	DefaultChannel = "quality-vision:events"

	pingTimeout    = 5 * time.Second
	publishTimeout = 2 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisPublisher зеркалирует события шины в канал Redis pub/sub.
type RedisPublisher struct {
	client  publisher
	channel string
	log     *logrus.Logger
}

// NewRedisPublisher подключается к Redis. Недоступный сервер не ошибка:
// публикации будут падать и логироваться.
func NewRedisPublisher(addr, password string, db int, channel string, log *logrus.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	log.Info(fmt.Sprintf("Connecting to Redis at %s...", addr))

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		log.Info("Successfully connected to Redis")
	}

	return &RedisPublisher{client: client, channel: channel, log: log}
}

// Publish отправляет одно событие
func (p *RedisPublisher) Publish(ctx context.Context, ev entity.Event) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	return nil
}

// Run публикует события до отмены ctx или закрытия events.
func (p *RedisPublisher) Run(ctx context.Context, events <-chan entity.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			if err := p.Publish(pctx, ev); err != nil {
				p.log.WithField("kind", ev.Kind).Error(err.Error())
			}
			cancel()
		}
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func encodeEvent(ev entity.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Kind, err)
	}
	return payload, nil
}
