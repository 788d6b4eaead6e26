package service

import (
	"context"
	"strconv"
	"time"

	"github.com/Skotchmaster/bookstore/internal/logging"
)

const (
	TopicUsers  = "user_events"
	TopicBooks  = "book_events"
	TopicCart   = "cart_events"
	TopicOrders = "order_events"
)

// publishTimeout bounds how long a request waits on the publisher after its write has committed.
const publishTimeout = time.Second

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// publish runs after the database write has committed, so a failure is logged and dropped.
func publish(ctx context.Context, pub EventPublisher, topic string, key uint, event map[string]any) {
	if pub == nil {
		return
	}
	event["at"] = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := pub.PublishEvent(ctx, topic, strconv.FormatUint(uint64(key), 10), event); err != nil {
		logging.FromContext(ctx).Warn("publish_event_failed", "topic", topic, "type", event["type"], "error", err)
	}
}
