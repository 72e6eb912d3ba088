package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "askbox.profile."

// Subject is the NATS subject for an event addressed to profileID, e.g.
// askbox.profile.<id>.profile.followed. Subscribers can use
// askbox.profile.<id>.> for one profile's stream.
func Subject(profileID string, t Type) string {
	return subjectPrefix + profileID + "." + string(t)
}

type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes JSON events to NATS core subjects.
type NATSPublisher struct {
	nc natsConn
}

// NewNATSPublisher connects to url. The connection reconnects indefinitely.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("askbox-api"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, e Event) error {
	if e.ProfileID == "" {
		return fmt.Errorf("event %s has no profile", e.Type)
	}
	body, err := encode(e)
	if err != nil {
		return err
	}
	return p.nc.Publish(Subject(e.ProfileID, e.Type), body)
}

func (p *NATSPublisher) Backend() string { return "nats" }

// Close drains pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
