package events

import (
	"log/slog"

	"askbox/internal/config"
	"askbox/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// New picks the publisher named by EVENTS_BACKEND. The redis backend
// degrades to Noop when the cache is unavailable.
func New(cfg *config.Config, rdb *redis.Client) (Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsBackendNATS:
		p, err := NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		middleware.Logger.Info("Publishing events to NATS", slog.String("url", cfg.NATSURL))
		return p, nil
	case config.EventsBackendRedis:
		if rdb == nil {
			middleware.Logger.Warn("Redis unavailable, events disabled")
			return Noop{}, nil
		}
		return NewRedisPublisher(rdb), nil
	default:
		return Noop{}, nil
	}
}
