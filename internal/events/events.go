package events

import (
	"context"
	"encoding/json"
	"time"
)

// Topics published on the bus.
const (
	TopicAuthStateChanged         = "auth.state_changed"
	TopicEmailVerificationSuccess = "email_verification_success"
	TopicVoteCast                 = "vote.cast"
	TopicProfileUpdated           = "profile.updated"
)

// Event is one broadcast. Payload is kept as raw JSON so events survive the
// trip through Redis unchanged.
type Event struct {
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	Origin    string          `json:"origin,omitempty"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// New builds an event with a JSON payload.
func New(topic string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Topic: topic, Payload: raw, Timestamp: time.Now().UTC()}, nil
}

// Handler receives events for a subscribed topic.
type Handler func(ctx context.Context, event Event)

// Bus is a process-wide publish/subscribe channel.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe registers h for topic. The empty topic receives every event.
	// The returned func removes the subscription.
	Subscribe(topic string, h Handler) func()
	Close() error
}

// AuthStateChanged is published when a credential record changes, most
// notably when its email confirmation timestamp is set.
type AuthStateChanged struct {
	UserID           string     `json:"user_id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
}

// EmailVerificationSuccess tells open views that an account became active.
type EmailVerificationSuccess struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}
