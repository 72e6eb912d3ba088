// Package events publishes graph and inbox events to an external bus.
// Delivery is best-effort: a publish failure never fails the request that
// produced the event.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"askbox/internal/middleware"
	"askbox/internal/observability"
)

// Type names an event kind. Values double as the NATS subject suffix.
type Type string

const (
	TypeProfileFollowed   Type = "profile.followed"
	TypeProfileUnfollowed Type = "profile.unfollowed"
	TypeProfileDeleted    Type = "profile.deleted"
	TypePostCreated       Type = "post.created"
	TypePostLiked         Type = "post.liked"
	TypeQuestionReceived  Type = "question.received"
)

// Event is addressed to one profile: the followed profile, the question
// recipient, the liked post's author.
type Event struct {
	Type       Type           `json:"type"`
	ProfileID  string         `json:"profile_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher delivers events to a bus.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Backend() string
	Close() error
}

func encode(e Event) ([]byte, error) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return json.Marshal(e)
}

// Emit publishes e and swallows the error after logging and counting it.
// A nil publisher drops the event.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		observability.EventPublishFailures.WithLabelValues(p.Backend(), string(e.Type)).Inc()
		middleware.Logger.WarnContext(ctx, "Event publish failed",
			slog.String("backend", p.Backend()),
			slog.String("type", string(e.Type)),
			slog.String("profile_id", e.ProfileID),
			slog.String("error", err.Error()))
	}
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Backend() string                      { return "none" }
func (Noop) Close() error                         { return nil }
