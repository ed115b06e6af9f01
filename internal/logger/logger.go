// Package logger installs the process-wide slog handler: text or JSON on
// stdout, Sentry for errors when configured, and an optional error sink.
package logger

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

type Options struct {
	Dev         bool
	Level       string // debug, info, warn or error; empty picks by Dev
	SentryDSN   string
	Environment string
}

var (
	mu   sync.Mutex
	base []slog.Handler
)

// Init installs the default logger. The returned func flushes buffered
// Sentry events and should run before exit.
func Init(opts Options) func() {
	level := parseLevel(opts.Level, opts.Dev)
	handlerOpts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	if opts.Dev {
		stdout = slog.NewTextHandler(os.Stdout, handlerOpts)
	}
	handlers := []slog.Handler{stdout}

	flush := func() {}
	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Environment,
		})
		if err != nil {
			slog.Warn("sentry disabled", "error", err)
		} else {
			handlers = append(handlers, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
			flush = func() { sentry.Flush(2 * time.Second) }
		}
	}

	mu.Lock()
	base = handlers
	mu.Unlock()
	install(handlers)
	return flush
}

func parseLevel(name string, dev bool) slog.Level {
	var level slog.Level
	err := level.UnmarshalText([]byte(name))
	if name == "" || err != nil {
		if dev {
			return slog.LevelDebug
		}
		return slog.LevelInfo
	}
	return level
}

// AttachErrorSink fans error-level records out to sink as well. Call it
// once storage is ready; the returned func drains and detaches the sink.
func AttachErrorSink(sink ErrorSink) func() {
	h := newSinkHandler(sink)

	mu.Lock()
	handlers := append(append([]slog.Handler{}, base...), h)
	mu.Unlock()
	install(handlers)

	return func() {
		mu.Lock()
		restored := base
		mu.Unlock()
		install(restored)
		h.close()
	}
}

func install(handlers []slog.Handler) {
	switch len(handlers) {
	case 0:
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	case 1:
		slog.SetDefault(slog.New(handlers[0]))
	default:
		slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)))
	}
}
