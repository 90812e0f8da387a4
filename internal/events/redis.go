package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroadcaster forwards bus events to a Redis Pub/Sub channel for realtime consumers.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	logger  *zerolog.Logger
}

func NewRedisBroadcaster(client *redis.Client, channel string, logger *zerolog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel, logger: logger}
}

// Handle satisfies EventHandler.
func (r *RedisBroadcaster) Handle(event *Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultPublishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", event.Type, err)
	}
	return nil
}

// SubscribeRedis delivers events from channel to handler until ctx is done.
// Malformed messages are logged and skipped.
func SubscribeRedis(ctx context.Context, client *redis.Client, channel string, handler EventHandler, logger *zerolog.Logger) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn().Err(err).Str("channel", channel).Msg("Skipping malformed event")
				continue
			}
			if err := handler(&event); err != nil {
				logger.Error().Err(err).Str("event_type", event.Type).Msg("Event handler failed")
			}
		}
	}
}
