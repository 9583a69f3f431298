package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-seating/internal/models"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestEmitReachesRoomAndSeatSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := NewSeatEventEmitter()

	room := e.Subscribe(ctx)
	seat3 := e.SubscribeToSeat(ctx, 3)
	seat4 := e.SubscribeToSeat(ctx, 4)

	ev := models.NewSeatStatusEvent(3, "pass-1", models.SeatEventOccupied, time.Hour, t0)
	require.NoError(t, e.PublishSeatEvent(ctx, ev))

	assert.Equal(t, ev, <-room)
	assert.Equal(t, ev, <-seat3)
	select {
	case got := <-seat4:
		t.Fatalf("seat 4 got %+v", got)
	default:
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := NewSeatEventEmitter()
	room := e.Subscribe(ctx)

	for i := 0; i < 100; i++ {
		e.Emit(models.NewSeatStatusEvent(int64(i+1), "p", models.SeatEventReleased, 0, t0))
	}
	assert.Len(t, room, e.buffer)
}

func TestCancelRemovesClient(t *testing.T) {
	e := NewSeatEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	room := e.Subscribe(ctx)
	e.SubscribeToSeat(ctx, 9)
	assert.Equal(t, 1, e.ClientCount())
	assert.Equal(t, 1, e.SeatClientCount(9))

	cancel()
	assert.Eventually(t, func() bool {
		return e.ClientCount() == 0 && e.SeatClientCount(9) == 0
	}, time.Second, 5*time.Millisecond)

	_, open := <-room
	assert.False(t, open)

	// Emitting with nobody listening is fine.
	e.Emit(models.NewSeatStatusEvent(9, "p", models.SeatEventReleased, 0, t0))
}
