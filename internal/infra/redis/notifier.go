package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"watchparty-quiz/internal/domain"
	"watchparty-quiz/internal/infra/memory"
)

const DefaultChannel = "watchparty:invalidations"

// Notifier publishes invalidations on a Redis channel and relays every
// message it receives, including its own, into the local hub. Instances
// sharing the channel therefore reach each other's websocket clients.
type Notifier struct {
	client  *redis.Client
	hub     *memory.Hub
	channel string
	log     *slog.Logger
}

func NewNotifier(client *redis.Client, hub *memory.Hub, channel string, logger *slog.Logger) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, hub: hub, channel: channel, log: logger}
}

// Invalidate implements app.Notifier.
func (n *Notifier) Invalidate(ctx context.Context, roomID string, topic domain.Topic) error {
	payload, err := json.Marshal(domain.Invalidation{RoomID: roomID, Topic: topic})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// Subscribe implements app.Subscriber on top of the local hub.
func (n *Notifier) Subscribe(roomID string) (<-chan domain.Invalidation, func()) {
	return n.hub.Subscribe(roomID)
}

// Start subscribes to the channel and relays messages until ctx is done.
// It returns once the subscription is confirmed by the server.
func (n *Notifier) Start(ctx context.Context) error {
	pubsub := n.client.Subscribe(ctx, n.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", n.channel, err)
	}

	go func() {
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var inv domain.Invalidation
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil || !inv.Topic.Valid() {
					n.log.Warn("dropping malformed invalidation", "channel", msg.Channel, "payload", msg.Payload)
					continue
				}
				n.hub.Publish(inv)
			}
		}
	}()
	return nil
}
