package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SignupOutcomes counts finished signup flows by terminal outcome.
	SignupOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirigo_signup_outcomes_total",
			Help: "Signup flows by terminal outcome.",
		},
		[]string{"outcome"},
	)

	// SignupAttempts counts account creation calls, including retries.
	SignupAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dirigo_signup_creation_attempts_total",
			Help: "Account creation calls issued by the signup controller.",
		},
	)

	VoteTransfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirigo_vote_transfers_total",
			Help: "Vote transfers by action and privacy.",
		},
		[]string{"action", "privacy"},
	)

	GhostVotes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dirigo_ghost_votes_total",
			Help: "Ghost votes cast.",
		},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirigo_events_published_total",
			Help: "Events published on the bus, by topic.",
		},
		[]string{"topic"},
	)

	AnalyticsCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirigo_analytics_cache_total",
			Help: "Analytics cache lookups by result.",
		},
		[]string{"result"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dirigo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by route and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

// Registry holds every dirigo collector. It is separate from the global
// registry so tests can build several apps in one process.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		SignupOutcomes,
		SignupAttempts,
		VoteTransfers,
		GhostVotes,
		EventsPublished,
		AnalyticsCache,
		RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request. Path segments that look like ids
// are collapsed to keep label cardinality bounded.
func ObserveRequest(method, path string, status int, elapsed time.Duration) {
	RequestDuration.WithLabelValues(Route(path), method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Route replaces id and token segments with ":id" so paths group into
// routes and secrets stay out of labels and logs.
func Route(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if len(p) >= 16 || (p != "" && strings.IndexFunc(p, func(r rune) bool { return r < '0' || r > '9' }) == -1) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
