package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published by the economy core.
const (
	EventDeliveryCreated = "delivery_created"
	EventAuctionSettled  = "auction_settled"
)

// Event is a lightweight observability signal for UI badges and
// external tooling. Delivery of events is best effort; the economy
// never depends on them.
type Event struct {
	Type      string      `json:"type"`
	Account   string      `json:"account"`
	Payload   interface{} `json:"payload,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Notifier publishes economy events.
type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

// RedisNotifier publishes events on a Redis channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a notifier publishing on the given channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "bazaar:events"
	}
	return &RedisNotifier{client: client, channel: channel}
}

// Publish sends the event, logging and swallowing any failure.
func (n *RedisNotifier) Publish(ctx context.Context, ev Event) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[Notifier] Failed to encode event %s: %v", ev.Type, err)
		return
	}
	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		log.Printf("[Notifier] Failed to publish event %s: %v", ev.Type, err)
	}
}

// NopNotifier drops all events. Used when Redis is not configured.
type NopNotifier struct{}

// Publish discards the event.
func (NopNotifier) Publish(ctx context.Context, ev Event) {}

var (
	_ Notifier = (*RedisNotifier)(nil)
	_ Notifier = NopNotifier{}
)
