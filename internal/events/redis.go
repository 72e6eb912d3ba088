package events

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"askbox/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const profileChannelPrefix = "events:profile:"

// ProfileChannel is the pub/sub channel carrying events addressed to profileID.
func ProfileChannel(profileID string) string {
	return profileChannelPrefix + profileID
}

// RedisPublisher publishes JSON events over Redis pub/sub.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher creates a publisher on rdb. A nil client publishes nothing.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if p.rdb == nil {
		return nil
	}
	if e.ProfileID == "" {
		return fmt.Errorf("event %s has no profile", e.Type)
	}
	body, err := encode(e)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, ProfileChannel(e.ProfileID), body).Err()
}

func (p *RedisPublisher) Backend() string { return "redis" }

// Close is a no-op: the client belongs to the cache package.
func (p *RedisPublisher) Close() error { return nil }

// Subscribe listens on every profile channel until ctx is cancelled and calls
// onMessage with the addressed profile id and the raw JSON payload. A panic in
// onMessage is logged and does not stop the loop.
func (p *RedisPublisher) Subscribe(
	ctx context.Context, onMessage func(profileID string, payload string),
) error {
	if p.rdb == nil {
		return nil
	}
	sub := p.rdb.PSubscribe(ctx, profileChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("Panic in event subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(strings.TrimPrefix(msg.Channel, profileChannelPrefix), msg.Payload)
				}()
			}
		}
	}()

	return nil
}
