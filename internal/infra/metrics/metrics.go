package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/yangirov/stock-background/internal/infra/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Cycle results used as the "result" label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the snapshot cycle collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal   *prometheus.CounterVec
	CyclesSkipped prometheus.Counter
	CycleDuration prometheus.Histogram
	LastSuccess   prometheus.Gauge
	LastPrice     prometheus.Gauge
	FrameBytes    prometheus.Gauge

	mu          sync.RWMutex
	lastSuccess time.Time
	lastError   string
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockbg_cycles_total",
			Help: "Snapshot cycles by result",
		}, []string{"result"}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockbg_cycles_skipped_total",
			Help: "Firings skipped because the previous cycle was still running",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockbg_cycle_duration_seconds",
			Help:    "Fetch, render and write latency per cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockbg_last_success_timestamp_seconds",
			Help: "Unix time of the last written frame",
		}),
		LastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockbg_last_price",
			Help: "Last close price drawn on the wallpaper",
		}),
		FrameBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockbg_frame_bytes",
			Help: "Size of the last written PNG",
		}),
	}

	m.registry.MustRegister(
		m.CyclesTotal,
		m.CyclesSkipped,
		m.CycleDuration,
		m.LastSuccess,
		m.LastPrice,
		m.FrameBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveSuccess records a written frame.
func (m *Metrics) ObserveSuccess(d time.Duration, lastPrice float64, frameBytes int, at time.Time) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(ResultSuccess).Inc()
	m.CycleDuration.Observe(d.Seconds())
	m.LastSuccess.Set(float64(at.Unix()))
	m.LastPrice.Set(lastPrice)
	m.FrameBytes.Set(float64(frameBytes))

	m.mu.Lock()
	m.lastSuccess = at
	m.lastError = ""
	m.mu.Unlock()
}

// ObserveFailure records a failed cycle.
func (m *Metrics) ObserveFailure(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(ResultFailure).Inc()
	m.CycleDuration.Observe(d.Seconds())

	m.mu.Lock()
	if err != nil {
		m.lastError = err.Error()
	}
	m.mu.Unlock()
}

// ObserveSkip records a firing dropped by the overlap guard.
func (m *Metrics) ObserveSkip() {
	if m == nil {
		return
	}
	m.CyclesSkipped.Inc()
}

type healthStatus struct {
	Status      string `json:"status"`
	LastSuccess string `json:"last_success,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// ServeHTTP is the /healthz handler: 200 while the last cycle succeeded
// (or none has finished yet), 503 after a failure.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	status := healthStatus{Status: "ok", LastError: m.lastError}
	if !m.lastSuccess.IsZero() {
		status.LastSuccess = m.lastSuccess.Format(time.RFC3339)
	}
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if status.LastError != "" {
		status.Status = "failing"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// Handler serves /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", m)
	return mux
}

// Serve listens on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.LogInfo("Metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
