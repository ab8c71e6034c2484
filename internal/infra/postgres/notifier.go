package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"watchparty-quiz/internal/domain"
	"watchparty-quiz/internal/infra/memory"
)

const DefaultChannel = "watchparty_invalidations"

// Notifier carries invalidations over Postgres NOTIFY so instances that only
// share the database still reach each other's websocket clients. A dedicated
// pooled connection LISTENs and relays notifications into the local hub.
type Notifier struct {
	pool    *pgxpool.Pool
	hub     *memory.Hub
	channel string
	log     *slog.Logger
}

func NewNotifier(pool *pgxpool.Pool, hub *memory.Hub, channel string, logger *slog.Logger) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{pool: pool, hub: hub, channel: channel, log: logger}
}

// Invalidate implements app.Notifier.
func (n *Notifier) Invalidate(ctx context.Context, roomID string, topic domain.Topic) error {
	payload, err := json.Marshal(domain.Invalidation{RoomID: roomID, Topic: topic})
	if err != nil {
		return err
	}
	_, err = n.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, n.channel, string(payload))
	return err
}

// Subscribe implements app.Subscriber on top of the local hub.
func (n *Notifier) Subscribe(roomID string) (<-chan domain.Invalidation, func()) {
	return n.hub.Subscribe(roomID)
}

// Start issues LISTEN on a dedicated connection and relays notifications
// until ctx is done. A dropped connection is re-acquired after a short pause.
func (n *Notifier) Start(ctx context.Context) error {
	conn, err := n.listen(ctx)
	if err != nil {
		return err
	}
	go func() {
		for {
			err := n.relay(ctx, conn)
			conn.Release()
			if ctx.Err() != nil {
				return
			}
			n.log.Warn("postgres listener stopped, reconnecting", "channel", n.channel, "err", err)
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				if conn, err = n.listen(ctx); err == nil {
					break
				}
				n.log.Warn("postgres listen failed", "channel", n.channel, "err", err)
			}
		}
	}()
	return nil
}

func (n *Notifier) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := n.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{n.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", n.channel, err)
	}
	return conn, nil
}

func (n *Notifier) relay(ctx context.Context, conn *pgxpool.Conn) error {
	for {
		note, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// The connection is mid-wait; drop it instead of returning it dirty.
				_ = conn.Conn().Close(context.Background())
			}
			return err
		}
		var inv domain.Invalidation
		if err := json.Unmarshal([]byte(note.Payload), &inv); err != nil || !inv.Topic.Valid() {
			n.log.Warn("dropping malformed invalidation", "channel", note.Channel, "payload", note.Payload)
			continue
		}
		n.hub.Publish(inv)
	}
}
