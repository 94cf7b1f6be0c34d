package app

import (
	"errors"
	"sync"
	"sync/atomic"

	"quality-vision/internal/domain/entity"
)

var (
	ErrBusClosed        = errors.New("event bus is closed")
	ErrSubscriberExists = errors.New("subscriber already exists")
)

// SubscriberStats счётчики доставки одному подписчику
type SubscriberStats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

type busSubscriber struct {
	ch      chan entity.Event
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// EventBus рассылает события контроллера. Публикация никогда не блокирует:
// если буфер подписчика полон, новое событие отбрасывается.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]*busSubscriber
	published   atomic.Uint64
	closed      bool
}

// NewEventBus создаёт пустую шину.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string]*busSubscriber)}
}

// Subscribe регистрирует подписчика с буфером заданного размера.
func (b *EventBus) Subscribe(id string, buffer int) (<-chan entity.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}
	if buffer < 1 {
		buffer = 1
	}

	sub := &busSubscriber{ch: make(chan entity.Event, buffer)}
	b.subscribers[id] = sub
	return sub.ch, nil
}

// Unsubscribe удаляет подписчика и закрывает его канал.
func (b *EventBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}

// Publish раздаёт событие всем подписчикам.
func (b *EventBus) Publish(ev entity.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- ev:
			sub.sent.Add(1)
		default:
			sub.dropped.Add(1)
		}
	}
}

// Stats возвращает счётчики подписчика.
func (b *EventBus) Stats(id string) (SubscriberStats, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sub, ok := b.subscribers[id]
	if !ok {
		return SubscriberStats{}, false
	}
	return SubscriberStats{Sent: sub.sent.Load(), Dropped: sub.dropped.Load()}, true
}

// Published общее число опубликованных событий.
func (b *EventBus) Published() uint64 {
	return b.published.Load()
}

// Close закрывает шину и каналы всех подписчиков.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
