package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRelayChannel = "listenparty:broadcast"
	relayBufferSize     = 1024
)

// relayEnvelope is what travels over the Redis channel.
type relayEnvelope struct {
	Origin  string        `json:"origin"`
	Room    PartyID       `json:"room"`
	Message ServerMessage `json:"message"`
}

// RedisRelay is a Transport that mirrors room broadcasts to every
// instance subscribed to the same Redis channel. Local rooms are served
// immediately by the embedded Hub; echoes of our own publishes are
// skipped on the way back in.
type RedisRelay struct {
	*Hub
	rdb     *redis.Client
	channel string
	origin  string
	out     chan relayEnvelope
}

func NewRedisRelay(hub *Hub, rdb *redis.Client, channel string) *RedisRelay {
	if channel == "" {
		channel = defaultRelayChannel
	}
	return &RedisRelay{
		Hub:     hub,
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		out:     make(chan relayEnvelope, relayBufferSize),
	}
}

// Publish delivers msg to the local room and queues it for the other
// instances. It never blocks.
func (r *RedisRelay) Publish(room PartyID, msg ServerMessage) {
	r.Hub.Publish(room, msg)
	select {
	case r.out <- relayEnvelope{Origin: r.origin, Room: room, Message: msg}:
	default:
		log.Printf("Relay buffer full, dropping %s for party %s", msg.Type, room)
	}
}

// Run publishes queued envelopes to Redis until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-r.out:
			data, err := json.Marshal(env)
			if err != nil {
				log.Printf("Relay marshal error: %v", err)
				continue
			}
			if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
				log.Printf("Relay publish error: %v", err)
			}
		}
	}
}

// Subscribe opens the subscription and waits for Redis to confirm it.
func (r *RedisRelay) Subscribe(ctx context.Context) (*redis.PubSub, error) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	return sub, nil
}

// Forward hands envelopes published by other instances to the local
// rooms. It returns when ctx is done or the subscription closes.
func (r *RedisRelay) Forward(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("Relay dropped malformed envelope: %v", err)
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			r.Hub.Publish(env.Room, env.Message)
		}
	}
}
