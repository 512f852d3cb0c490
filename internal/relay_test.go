package internal

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T, ctx context.Context, addr string) (*RedisRelay, *Hub) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })

	hub := NewHub()
	relay := NewRedisRelay(hub, rdb, "test:broadcast")
	sub, err := relay.Subscribe(ctx)
	require.NoError(t, err)
	go relay.Run(ctx)
	go relay.Forward(ctx, sub)
	return relay, hub
}

func TestRedisRelay(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay1, hub1 := startRelay(t, ctx, mr.Addr())
	_, hub2 := startRelay(t, ctx, mr.Addr())

	local := newHubClient(hub1, "local", 8)
	remote := newHubClient(hub2, "remote", 8)
	other := newHubClient(hub2, "other", 8)
	hub1.JoinRoom("P1", "local")
	hub2.JoinRoom("P1", "remote")
	hub2.JoinRoom("P2", "other")

	relay1.Publish("P1", NewServerMessage(ServerMessageInfo, ServerMessageTextPayload{Text: "hello"}))

	// local delivery does not wait for the round trip
	got := drain(local)
	require.Len(t, got, 1)
	assert.Equal(t, ServerMessageInfo, got[0].Type)

	select {
	case msg := <-remote.send:
		assert.Equal(t, ServerMessageInfo, msg.Type)
		assert.JSONEq(t, `{"text":"hello"}`, string(msg.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("remote instance never received the broadcast")
	}

	// our own echo is skipped and other rooms are untouched
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, drain(local))
	assert.Empty(t, drain(other))
}

func TestRedisRelaySubscribeFails(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = NewRedisRelay(NewHub(), rdb, "").Subscribe(ctx)
	assert.Error(t, err)
}
