// Package metrics exposes engine and completion counters over Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tabcomplete/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	EventShown    = "shown"
	EventAccepted = "accepted"
	EventDisposed = "disposed"
)

// Registry holds every tabcomplete collector. It is separate from the
// default registry so tests and embedders see only these series.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// Requests counts engine requests by kind (Prefetch, Autocomplete)
	Requests = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "tabcomplete_engine_requests_total",
		Help: "Engine requests by kind",
	}, []string{"kind"})

	// RequestFailures counts requests that returned no response
	RequestFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "tabcomplete_engine_request_failures_total",
		Help: "Engine requests that failed, by kind",
	}, []string{"kind"})

	// RequestDuration tracks successful round-trip latency
	RequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tabcomplete_engine_request_duration_seconds",
		Help:    "Engine round-trip duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 13), // 1ms to ~4s
	}, []string{"kind"})

	EngineRestarts = factory.NewCounter(prometheus.CounterOpts{
		Name: "tabcomplete_engine_restarts_total",
		Help: "Engine restarts counted against the restart budget",
	})

	EngineUnavailable = factory.NewCounter(prometheus.CounterOpts{
		Name: "tabcomplete_engine_budget_exhausted_total",
		Help: "Failures observed after the restart budget was spent",
	})

	Completions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "tabcomplete_completions_total",
		Help: "Completion lists by lifecycle event",
	}, []string{"event"})

	CompletionLifespan = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "tabcomplete_completion_lifespan_seconds",
		Help:    "Time a completion list stayed visible before being accepted or dismissed",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	SubstitutionFallbacks = factory.NewCounter(prometheus.CounterOpts{
		Name: "tabcomplete_substitution_fallbacks_total",
		Help: "Cursors whose prefix did not match and were widened to the word under the cursor",
	})
)

// CompletionMetrics describes one visible completion list
type CompletionMetrics struct {
	ID      string
	Choices int
	ShownAt time.Time
}

// Tracker records the lifecycle of completion lists
type Tracker struct{}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) TrackShown(m *CompletionMetrics) {
	Completions.WithLabelValues(EventShown).Inc()
	logger.Debug("metrics: %s shown with %d choices", m.ID, m.Choices)
}

func (t *Tracker) TrackAccepted(m *CompletionMetrics) {
	Completions.WithLabelValues(EventAccepted).Inc()
	t.observeLifespan(m)
	logger.Debug("metrics: %s accepted", m.ID)
}

func (t *Tracker) TrackDisposed(m *CompletionMetrics) {
	Completions.WithLabelValues(EventDisposed).Inc()
	t.observeLifespan(m)
	logger.Debug("metrics: %s disposed", m.ID)
}

func (t *Tracker) observeLifespan(m *CompletionMetrics) {
	if m.ShownAt.IsZero() {
		return
	}
	CompletionLifespan.Observe(time.Since(m.ShownAt).Seconds())
}

// Handler serves Registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
