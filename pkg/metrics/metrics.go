// Package metrics exposes probe run telemetry in Prometheus format.
//
// A Recorder owns a private registry so importing this package never
// touches the global default registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/waftester/chatprobe/pkg/duration"
	"github.com/waftester/chatprobe/pkg/runner"
)

const namespace = "chatprobe"

// Recorder counts attempts and runs.
type Recorder struct {
	registry *prometheus.Registry

	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
	runAttempts     *prometheus.HistogramVec
	failureStreak   *prometheus.GaugeVec
}

// NewRecorder creates a recorder with its metrics registered.
func NewRecorder() (*Recorder, error) {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Candidate attempts by operation, candidate kind and result kind.",
		},
		[]string{"operation", "kind", "result"},
	)
	r.attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Wall time of one attempt.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"operation", "result"},
	)
	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished probe runs by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	r.runAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_attempts",
			Help:      "Attempts needed per run.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
		[]string{"operation"},
	)
	r.failureStreak = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transport_failure_streak",
			Help:      "Consecutive transport failures after the latest attempt.",
		},
		[]string{"operation"},
	)

	for _, c := range []prometheus.Collector{
		r.attemptsTotal, r.attemptDuration, r.runsTotal, r.runAttempts, r.failureStreak,
	} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}
	return r, nil
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveAttempt records one attempt. It has the runner.OnAttempt shape.
func (r *Recorder) ObserveAttempt(a runner.Attempt) {
	op := a.Candidate.Operation
	result := string(a.Result.Kind)
	r.attemptsTotal.WithLabelValues(op, string(a.Candidate.Kind), result).Inc()
	r.attemptDuration.WithLabelValues(op, result).Observe(float64(a.DurationMS) / 1000.0)
	r.failureStreak.WithLabelValues(op).Set(float64(a.ConsecutiveFailures))
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(rep *runner.Report) {
	r.runsTotal.WithLabelValues(rep.Operation, string(rep.Outcome())).Inc()
	r.runAttempts.WithLabelValues(rep.Operation).Observe(float64(len(rep.Attempts)))
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Server exposes a Recorder over HTTP while a run is in progress.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
}

// Serve listens on addr (":9090", "127.0.0.1:0") and serves /metrics
// until Close. Listen errors are returned immediately.
func Serve(addr string, r *Recorder, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	s := &Server{
		srv: &http.Server{
			Handler:      mux,
			ReadTimeout:  duration.MetricsReadTimeout,
			WriteTimeout: duration.MetricsWriteTimeout,
		},
		ln:     ln,
		logger: logger,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	logger.Debug("metrics server listening", slog.String("addr", ln.Addr().String()))
	return s, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close shuts the server down and waits for it to exit.
func (s *Server) Close() error {
	var err error
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), duration.ShutdownGrace)
		defer cancel()
		err = s.srv.Shutdown(ctx)
		<-s.done
	})
	return err
}

