// Package rabbitmq fans invalidations out through a topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"watchparty-quiz/internal/domain"
	"watchparty-quiz/internal/infra/memory"
)

const DefaultExchange = "watchparty.invalidations"

// RoutingKey is room.{roomID}.{topic}; consumers bind room.# for every room.
func RoutingKey(roomID string, topic domain.Topic) string {
	return "room." + roomID + "." + string(topic)
}

// ParseRoutingKey reverses RoutingKey.
func ParseRoutingKey(key string) (domain.Invalidation, bool) {
	rest, ok := strings.CutPrefix(key, "room.")
	if !ok {
		return domain.Invalidation{}, false
	}
	i := strings.LastIndexByte(rest, '.')
	if i <= 0 {
		return domain.Invalidation{}, false
	}
	inv := domain.Invalidation{RoomID: rest[:i], Topic: domain.Topic(rest[i+1:])}
	return inv, inv.Topic.Valid()
}

// Notifier publishes one message per invalidation and consumes the exchange
// through an exclusive, server-named queue feeding the local hub.
type Notifier struct {
	conn     *amqp.Connection
	exchange string
	hub      *memory.Hub
	log      *slog.Logger

	mu      sync.Mutex
	publish *amqp.Channel
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string, hub *memory.Hub, logger *slog.Logger) (*Notifier, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Notifier{conn: conn, exchange: exchange, hub: hub, log: logger, publish: ch}, nil
}

// Invalidate implements app.Notifier.
func (n *Notifier) Invalidate(ctx context.Context, roomID string, topic domain.Topic) error {
	body, err := json.Marshal(domain.Invalidation{RoomID: roomID, Topic: topic})
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.publish.PublishWithContext(ctx, n.exchange, RoutingKey(roomID, topic), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Subscribe implements app.Subscriber on top of the local hub.
func (n *Notifier) Subscribe(roomID string) (<-chan domain.Invalidation, func()) {
	return n.hub.Subscribe(roomID)
}

// Start binds an exclusive queue to the exchange and relays deliveries
// until ctx is done or the connection closes.
func (n *Notifier) Start(ctx context.Context) error {
	ch, err := n.conn.Channel()
	if err != nil {
		return err
	}
	queue, err := ch.QueueDeclare(
		"",
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.QueueBind(queue.Name, "room.#", n.exchange, false, nil); err != nil {
		_ = ch.Close()
		return err
	}
	deliveries, err := ch.Consume(
		queue.Name,
		"",
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return err
	}

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					n.log.Warn("rabbitmq deliveries closed", "exchange", n.exchange)
					return
				}
				inv, ok := ParseRoutingKey(d.RoutingKey)
				if !ok {
					n.log.Warn("dropping malformed invalidation", "routing_key", d.RoutingKey)
					continue
				}
				n.hub.Publish(inv)
			}
		}
	}()
	return nil
}

func (n *Notifier) Close() error {
	return n.conn.Close()
}
