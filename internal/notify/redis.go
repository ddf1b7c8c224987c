package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "nova:notify:"

// RedisBroker relays published events through Redis pub/sub so that every
// server replica fans out to its own socket clients. Subscription state
// stays local; only events cross the wire.
type RedisBroker struct {
	local  *Bus
	client *redis.Client
	cancel context.CancelFunc
}

// NewRedisBroker connects to Redis and starts the relay subscription.
func NewRedisBroker(addr, password string, db int) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	relayCtx, relayCancel := context.WithCancel(context.Background())
	b := &RedisBroker{
		local:  NewBus(),
		client: client,
		cancel: relayCancel,
	}
	go b.relay(relayCtx)

	return b, nil
}

// Join subscribes s to a channel on the local stage.
func (b *RedisBroker) Join(channel string, s Subscriber) {
	b.local.Join(channel, s)
}

// Leave unsubscribes s from a channel.
func (b *RedisBroker) Leave(channel string, s Subscriber) {
	b.local.Leave(channel, s)
}

// LeaveAll removes s from every channel.
func (b *RedisBroker) LeaveAll(s Subscriber) {
	b.local.LeaveAll(s)
}

// Publish sends the event through Redis; the relay of every replica
// (including this one) delivers it locally.
func (b *RedisBroker) Publish(channel string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to encode notification", "channel", channel, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.client.Publish(ctx, channelPrefix+channel, payload).Err(); err != nil {
		slog.Error("Failed to publish notification", "channel", channel, "error", err)
		// Degrade to local delivery so single-node setups keep working
		b.local.Publish(channel, event)
	}
}

// Close stops the relay and closes the Redis connection.
func (b *RedisBroker) Close() error {
	b.cancel()
	return b.client.Close()
}

// relay consumes the pattern subscription and feeds events to the local bus.
func (b *RedisBroker) relay(ctx context.Context) {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.Warn("Dropping malformed notification", "channel", msg.Channel, "error", err)
				continue
			}

			b.local.Publish(strings.TrimPrefix(msg.Channel, channelPrefix), event)
		}
	}
}
