package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ms-seating/internal/models"
)

// SeatEventPublisher forwards seat status events to a topic keyed by seat.
type SeatEventPublisher struct {
	Producer *Producer
	Topic    string
}

func (p *SeatEventPublisher) PublishSeatEvent(ctx context.Context, e models.SeatStatusEvent) error {
	return p.Producer.PublishJSON(ctx, p.Topic, strconv.FormatInt(e.SeatID, 10), e)
}

// PurchasePublisher hands purchase logs to Kafka instead of writing them
// in the request path. The purchase recorder consumer stores them.
type PurchasePublisher struct {
	Producer *Producer
	Topic    string
}

func (p *PurchasePublisher) RecordPurchase(ctx context.Context, l models.PurchaseLog) error {
	return p.Producer.PublishJSON(ctx, p.Topic, l.UserPassID, l)
}

// PurchaseRecorder stores a purchase log.
type PurchaseRecorder interface {
	RecordPurchase(ctx context.Context, l models.PurchaseLog) error
}

// PurchaseHandler decodes purchase messages into recorder.
func PurchaseHandler(recorder PurchaseRecorder) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var l models.PurchaseLog
		if err := json.Unmarshal(msg.Value, &l); err != nil {
			return Skip(fmt.Errorf("decode purchase: %w", err))
		}
		l.ID = 0
		return recorder.RecordPurchase(ctx, l)
	}
}
