// Package messaging wraps the Redis pub/sub channels the services talk over.
//
// The bus is deliberately fire-and-forget: at-most-once delivery, no
// durability, no acknowledgement. A message published while no subscriber is
// connected is lost. Subscribers poll with a one-second receive timeout so a
// shutdown signal is observed promptly.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel names used by the pipeline.
const (
	ChannelOrderEvents     = "order_events"
	ChannelInventoryEvents = "inventory_events"
	ChannelSagaEvents      = "saga_events"
)

const receiveTimeout = 1 * time.Second

// Envelope is the wire format of every bus message: the event type plus the
// event payload.
type Envelope struct {
	EventType string `json:"event_type"`
	Data      any    `json:"data"`
}

// Handler processes one raw message from a channel.
type Handler func(ctx context.Context, payload []byte) error

// Bus is a Redis-backed publish/subscribe connection. Each process creates
// one at startup and closes it at shutdown.
type Bus struct {
	client *redis.Client
	logger *zap.Logger
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Bus{client: client, logger: logger}, nil
}

// Publish sends a JSON-encoded message to a channel. Delivery is
// best-effort; there is no redelivery if nobody is listening.
func (b *Bus) Publish(ctx context.Context, channel string, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", channel, err)
	}

	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}

	b.logger.Debug("published message", zap.String("channel", channel))
	return nil
}

// Subscribe consumes a channel until ctx is cancelled. Handler errors are
// logged and the message is dropped; the subscription stays alive. The
// subscription is released on every exit path.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler Handler) error {
	sub := b.client.Subscribe(ctx, channel)
	defer func() {
		sub.Unsubscribe(context.Background(), channel)
		sub.Close()
	}()

	// Fail fast if the subscription itself could not be established.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	b.logger.Info("subscribed", zap.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("subscription stopped", zap.String("channel", channel))
			return nil
		default:
		}

		raw, err := sub.ReceiveTimeout(ctx, receiveTimeout)
		if err != nil {
			if isReceiveTimeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive from %s: %w", channel, err)
		}

		msg, ok := raw.(*redis.Message)
		if !ok {
			continue
		}

		if err := handler(ctx, []byte(msg.Payload)); err != nil {
			b.logger.Error("failed to process message",
				zap.String("channel", channel),
				zap.Error(err))
		}
	}
}

// Close releases the Redis connection.
func (b *Bus) Close() error {
	return b.client.Close()
}

func isReceiveTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
