package sse

import (
	"context"
	"sync"

	"ms-seating/internal/models"
)

// allSeats is the subscription key for clients watching the whole room.
const allSeats int64 = 0

// SeatEventEmitter fans seat status events out to SSE clients, either for
// the whole room or for a single seat.
type SeatEventEmitter struct {
	mu      sync.RWMutex
	clients map[int64][]chan models.SeatStatusEvent
	buffer  int
}

func NewSeatEventEmitter() *SeatEventEmitter {
	return &SeatEventEmitter{
		clients: make(map[int64][]chan models.SeatStatusEvent),
		buffer:  16,
	}
}

// Subscribe returns a channel of every seat's events. It is closed once
// ctx is done.
func (e *SeatEventEmitter) Subscribe(ctx context.Context) <-chan models.SeatStatusEvent {
	return e.subscribe(ctx, allSeats)
}

// SubscribeToSeat returns a channel of seatID's events only.
func (e *SeatEventEmitter) SubscribeToSeat(ctx context.Context, seatID int64) <-chan models.SeatStatusEvent {
	return e.subscribe(ctx, seatID)
}

func (e *SeatEventEmitter) subscribe(ctx context.Context, key int64) <-chan models.SeatStatusEvent {
	ch := make(chan models.SeatStatusEvent, e.buffer)

	e.mu.Lock()
	e.clients[key] = append(e.clients[key], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(key, ch)
	}()
	return ch
}

// Emit delivers ev to room and seat subscribers. Clients whose buffer is
// full miss the event.
func (e *SeatEventEmitter) Emit(ev models.SeatStatusEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, key := range []int64{allSeats, ev.SeatID} {
		for _, ch := range e.clients[key] {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// PublishSeatEvent lets the emitter sit behind the occupancy publisher.
func (e *SeatEventEmitter) PublishSeatEvent(_ context.Context, ev models.SeatStatusEvent) error {
	e.Emit(ev)
	return nil
}

func (e *SeatEventEmitter) remove(key int64, ch chan models.SeatStatusEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[key]
	for i, c := range clients {
		if c == ch {
			e.clients[key] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[key]) == 0 {
		delete(e.clients, key)
	}
}

// ClientCount returns how many clients watch the whole room.
func (e *SeatEventEmitter) ClientCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[allSeats])
}

// SeatClientCount returns how many clients watch seatID alone.
func (e *SeatEventEmitter) SeatClientCount(seatID int64) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[seatID])
}
