// Package metrics exports request lifecycle counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/docpilot/internal/lifecycle"
)

const namespace = "docpilot"

// Recorder implements lifecycle.Observer on a private registry.
type Recorder struct {
	registry    *prometheus.Registry
	calls       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	pending     *prometheus.GaugeVec
}

var _ lifecycle.Observer = (*Recorder)(nil)

// New creates a recorder with its own registry. Go runtime and process
// collectors are registered alongside the lifecycle metrics.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Backend invocations by slot and outcome.",
		}, []string{"slot", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_transitions_total",
			Help:      "Slot status transitions.",
		}, []string{"slot", "from", "to"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_duration_seconds",
			Help:      "Latency of dispatched backend calls.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"slot"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slot_pending",
			Help:      "1 while a slot has a call in flight.",
		}, []string{"slot"}),
	}
	r.registry.MustRegister(
		r.calls,
		r.transitions,
		r.duration,
		r.pending,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveTransition implements lifecycle.Observer.
func (r *Recorder) ObserveTransition(slot string, from, to lifecycle.Status) {
	r.transitions.WithLabelValues(slot, string(from), string(to)).Inc()
	if to == lifecycle.StatusPending {
		r.pending.WithLabelValues(slot).Set(1)
	} else if from == lifecycle.StatusPending {
		r.pending.WithLabelValues(slot).Set(0)
	}
}

// ObserveCall implements lifecycle.Observer. Rejected calls never reach the
// backend and are counted without a latency sample.
func (r *Recorder) ObserveCall(slot string, outcome lifecycle.Outcome, elapsed time.Duration) {
	r.calls.WithLabelValues(slot, outcome.String()).Inc()
	if outcome != lifecycle.OutcomeRejected {
		r.duration.WithLabelValues(slot).Observe(elapsed.Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
