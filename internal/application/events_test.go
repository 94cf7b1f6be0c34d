package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"quality-vision/internal/domain/entity"
)

func TestEventBus_PublishFanOut(t *testing.T) {
	bus := NewEventBus()
	a, err := bus.Subscribe("a", 4)
	require.NoError(t, err)
	b, err := bus.Subscribe("b", 4)
	require.NoError(t, err)

	bus.Publish(entity.Event{Kind: entity.EventHistoryCleared})

	require.Equal(t, entity.EventHistoryCleared, (<-a).Kind)
	require.Equal(t, entity.EventHistoryCleared, (<-b).Kind)
	require.Equal(t, uint64(1), bus.Published())
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus()
	ch, err := bus.Subscribe("slow", 1)
	require.NoError(t, err)

	bus.Publish(entity.Event{Kind: entity.EventStateChanged})
	bus.Publish(entity.Event{Kind: entity.EventHistoryCleared})

	stats, ok := bus.Stats("slow")
	require.True(t, ok)
	require.Equal(t, uint64(1), stats.Sent)
	require.Equal(t, uint64(1), stats.Dropped)

	// Первое событие сохранилось, второе отброшено.
	require.Equal(t, entity.EventStateChanged, (<-ch).Kind)
}

func TestEventBus_SubscribeErrors(t *testing.T) {
	bus := NewEventBus()
	_, err := bus.Subscribe("x", 1)
	require.NoError(t, err)

	_, err = bus.Subscribe("x", 1)
	require.ErrorIs(t, err, ErrSubscriberExists)

	bus.Close()
	_, err = bus.Subscribe("y", 1)
	require.ErrorIs(t, err, ErrBusClosed)

	// Публикация после закрытия не паникует.
	bus.Publish(entity.Event{Kind: entity.EventStateChanged})
}

func TestEventBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus()
	ch, err := bus.Subscribe("x", 1)
	require.NoError(t, err)

	bus.Unsubscribe("x")
	_, open := <-ch
	require.False(t, open)

	_, ok := bus.Stats("x")
	require.False(t, ok)
}
