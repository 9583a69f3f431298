// Package redis mirrors every live occupancy as a Redis key whose TTL is
// the occupancy's remaining entitlement. When a key expires, Redis tells
// the service which seat to sweep.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-seating/internal/logger"
	"ms-seating/internal/models"
)

const expiredChannel = "__keyevent@*__:expired"

type ExpiryScheduler struct {
	Client *redis.Client
	Prefix string
	Logger *logger.Logger
}

func NewExpiryScheduler(client *redis.Client, prefix string, log *logger.Logger) *ExpiryScheduler {
	if prefix == "" {
		prefix = "seat_expiry:"
	}
	return &ExpiryScheduler{Client: client, Prefix: prefix, Logger: log}
}

func (e *ExpiryScheduler) Key(seatID int64) string {
	return e.Prefix + strconv.FormatInt(seatID, 10)
}

// ParseSeatKey extracts the seat id from an expiry key.
func (e *ExpiryScheduler) ParseSeatKey(key string) (int64, bool) {
	if !strings.HasPrefix(key, e.Prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(key, e.Prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// PublishSeatEvent arms the expiry key when a seat is occupied and clears
// it when the occupancy ends.
func (e *ExpiryScheduler) PublishSeatEvent(ctx context.Context, ev models.SeatStatusEvent) error {
	key := e.Key(ev.SeatID)
	if !ev.Occupied || ev.RemainingSeconds <= 0 {
		if err := e.Client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("clear expiry for seat %d: %w", ev.SeatID, err)
		}
		return nil
	}

	// One second past the truncated remaining, so the key never fires
	// while time is left.
	ttl := ev.Remaining() + time.Second
	if err := e.Client.Set(ctx, key, ev.UserPassID, ttl).Err(); err != nil {
		return fmt.Errorf("arm expiry for seat %d: %w", ev.SeatID, err)
	}
	return nil
}

// EnableNotifications turns on expired-key events. Managed Redis offerings
// may refuse CONFIG SET; that is logged, not fatal.
func (e *ExpiryScheduler) EnableNotifications(ctx context.Context) {
	if err := e.Client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		e.Logger.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
		return
	}
	e.Logger.Info("REDIS", "Keyspace notifications enabled for expired events")
}

// Subscribe calls handle with the seat id of every expiry key that fires,
// until ctx is done.
func (e *ExpiryScheduler) Subscribe(ctx context.Context, handle func(ctx context.Context, seatID int64)) error {
	pubsub := e.Client.PSubscribe(ctx, expiredChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to expired keys: %w", err)
	}
	e.Logger.Info("REDIS", fmt.Sprintf("Subscribed to %s", expiredChannel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			seatID, ok := e.ParseSeatKey(msg.Payload)
			if !ok {
				continue
			}
			e.Logger.Debug("REDIS", fmt.Sprintf("Expiry fired for seat %d", seatID))
			handle(ctx, seatID)
		}
	}
}
