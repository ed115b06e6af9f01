package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ErrorSink persists error records. Implementations must not log through
// slog, otherwise a failing sink would feed itself.
type ErrorSink interface {
	RecordError(ctx context.Context, level, message, details string) error
}

type sinkRecord struct {
	level   string
	message string
	attrs   map[string]any
}

// sinkHandler forwards error-level records to an ErrorSink on a background
// worker. Writes are best-effort: a full queue or a failing sink is reported
// on stderr and dropped.
type sinkHandler struct {
	*sinkWorker
	attrs []slog.Attr
	group string
}

// sinkWorker is shared by every handler derived through WithAttrs/WithGroup.
type sinkWorker struct {
	sink   ErrorSink
	mu     sync.RWMutex
	closed bool
	queue  chan sinkRecord
	done   chan struct{}
}

func newSinkHandler(sink ErrorSink) *sinkHandler {
	w := &sinkWorker{
		sink:  sink,
		queue: make(chan sinkRecord, 256),
		done:  make(chan struct{}),
	}
	go w.run()
	return &sinkHandler{sinkWorker: w}
}

func (h *sinkHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *sinkHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[h.key(a.Key)] = attrValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.key(a.Key)] = attrValue(a.Value)
		return true
	})

	h.enqueue(sinkRecord{level: r.Level.String(), message: r.Message, attrs: attrs})
	return nil
}

func (h *sinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *sinkHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.group = h.key(name)
	return &clone
}

func (h *sinkHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (w *sinkWorker) enqueue(rec sinkRecord) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.queue <- rec:
	default:
		fmt.Fprintf(os.Stderr, "system error sink full, dropping: %s\n", rec.message)
	}
}

func (w *sinkWorker) run() {
	defer close(w.done)
	for rec := range w.queue {
		payload, err := json.Marshal(rec.attrs)
		if err != nil {
			payload = []byte("{}")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = w.sink.RecordError(ctx, rec.level, rec.message, string(payload))
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "system error sink failed: %v (message: %s)\n", err, rec.message)
		}
	}
}

func (w *sinkWorker) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	<-w.done
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	case slog.KindGroup:
		group := make(map[string]any)
		for _, a := range v.Group() {
			group[a.Key] = attrValue(a.Value)
		}
		return group
	default:
		return v.Any()
	}
}
