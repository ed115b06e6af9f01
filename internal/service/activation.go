package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dirigovotes/dirigo/internal/events"
	"github.com/dirigovotes/dirigo/internal/metrics"
	"github.com/dirigovotes/dirigo/internal/repository"
)

// ProfileActivator is the single shared listener that activates a pending
// profile once its email confirmation is observed, then tells open views.
type ProfileActivator struct {
	profileRepository repository.ProfileRepository
	emailService      *EmailService
	bus               events.Bus
}

func NewProfileActivator(profileRepository repository.ProfileRepository, emailService *EmailService, bus events.Bus) *ProfileActivator {
	return &ProfileActivator{
		profileRepository: profileRepository,
		emailService:      emailService,
		bus:               bus,
	}
}

// Start subscribes the activator and returns the unsubscribe func.
func (a *ProfileActivator) Start() func() {
	return a.bus.Subscribe(events.TopicAuthStateChanged, a.handle)
}

func (a *ProfileActivator) handle(ctx context.Context, event events.Event) {
	var change events.AuthStateChanged
	err := event.Decode(&change)
	if err != nil {
		slog.Warn("invalid auth state payload", "error", err)
		return
	}

	if change.EmailConfirmedAt == nil {
		return
	}

	activated, err := a.profileRepository.ActivatePending(ctx, change.UserID)
	if err != nil {
		slog.Error("failed to activate profile", "error", err, "user_id", change.UserID)
		return
	}
	if !activated {
		return
	}

	slog.Info("profile activated", "user_id", change.UserID)

	profile, err := a.profileRepository.ByUserID(ctx, change.UserID)
	name := ""
	if err == nil {
		name = profile.Name
	}
	err = a.emailService.SendWelcomeEmail(ctx, change.Email, name)
	if err != nil {
		slog.Warn("failed to send welcome email", "error", err, "user_id", change.UserID)
	}

	publish(ctx, a.bus, events.TopicEmailVerificationSuccess, events.EmailVerificationSuccess{
		UserID:    change.UserID,
		Email:     change.Email,
		Timestamp: time.Now().UTC(),
	})
}

// publish is best-effort: a failed broadcast is logged and never fails the caller.
func publish(ctx context.Context, bus events.Bus, topic string, payload any) {
	if bus == nil {
		return
	}

	event, err := events.New(topic, payload)
	if err != nil {
		slog.Warn("failed to encode event", "error", err, "topic", topic)
		return
	}

	err = bus.Publish(ctx, event)
	if err != nil {
		slog.Warn("failed to publish event", "error", err, "topic", topic)
		return
	}
	metrics.EventsPublished.WithLabelValues(topic).Inc()
}
