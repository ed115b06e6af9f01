package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dirigovotes/dirigo/internal/ctxkeys"
	"github.com/dirigovotes/dirigo/internal/events"
	"github.com/dirigovotes/dirigo/internal/middleware"
	"github.com/dirigovotes/dirigo/internal/service"
)

const (
	streamBuffer    = 32
	streamHeartbeat = 25 * time.Second
)

type EventsHandler struct {
	bus          events.Bus
	adminService *service.AdminService
	heartbeat    time.Duration
}

func NewEventsHandler(bus events.Bus, adminService *service.AdminService) *EventsHandler {
	return &EventsHandler{bus: bus, adminService: adminService, heartbeat: streamHeartbeat}
}

// Stream pushes bus events to the caller as server-sent events. Events about
// another user are withheld unless the caller is an admin at the time the
// event is forwarded.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	userID := ctxkeys.UserID(ctx)

	ch := make(chan events.Event, streamBuffer)
	unsubscribe := h.bus.Subscribe("", func(_ context.Context, event events.Event) {
		select {
		case ch <- event:
		default:
			slog.Warn("event stream full, dropping event", "topic", event.Topic, "user_id", userID)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event := <-ch:
			if !visibleTo(event, userID) && !h.isAdmin(ctx, userID) {
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("failed to encode event", "error", err, "topic", event.Topic)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, data)
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) isAdmin(ctx context.Context, userID string) bool {
	_, err := h.adminService.Authorize(ctx, userID)
	if err != nil && !errors.Is(err, service.ErrForbidden) {
		slog.Warn("failed to authorize event stream", "error", err, "user_id", userID)
	}
	return err == nil
}

func visibleTo(event events.Event, userID string) bool {
	var owner struct {
		UserID string `json:"user_id"`
	}
	if err := event.Decode(&owner); err != nil {
		return false
	}
	return owner.UserID == "" || owner.UserID == userID
}
