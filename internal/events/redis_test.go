package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBroadcasterRoundTrip(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	logger := zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- SubscribeRedis(ctx, client, "missions", func(e *Event) error {
			received <- e
			return nil
		}, &logger)
	}()

	require.Eventually(t, func() bool {
		return len(s.PubSubChannels("missions")) == 1
	}, time.Second, 10*time.Millisecond)

	bus := NewEventBus()
	bus.Subscribe(AllEvents, NewRedisBroadcaster(client, "missions", &logger).Handle)
	require.NoError(t, bus.PublishJSON(EventMissionChanged, MissionEventPayload{MissionID: "m1", Status: "completed", Version: 9}))

	select {
	case e := <-received:
		payload, err := DecodeMission(e)
		require.NoError(t, err)
		assert.Equal(t, "m1", payload.MissionID)
		assert.Equal(t, int64(9), payload.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestRedisBroadcaster_Unavailable(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	s.Close()

	logger := zerolog.Nop()
	err := NewRedisBroadcaster(client, "missions", &logger).Handle(&Event{Type: EventMissionChanged})
	assert.Error(t, err)
}
