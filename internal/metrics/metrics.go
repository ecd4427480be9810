package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattmezza/alertai/internal/alerter"
	"github.com/mattmezza/alertai/internal/state"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame processing counters
	FramesRead      atomic.Uint64
	FramesProcessed atomic.Uint64

	// Error counters
	ReadErrors     atomic.Uint64
	DetectorErrors atomic.Uint64

	// Latency of the last detector call
	DetectLatencyMs atomic.Uint64

	detections         *prometheus.CounterVec
	alertsFired        *prometheus.CounterVec
	notificationErrors *prometheus.CounterVec
	notificationsSent  *prometheus.CounterVec
	categoryActive     *prometheus.GaugeVec
	detectLatency      prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a new Metrics instance with its own Prometheus registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "alertai_frames_read_total",
			Help: "Total frames read from the camera",
		},
		func() float64 { return float64(m.FramesRead.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "alertai_frames_processed_total",
			Help: "Total frames passed through the detector and debouncer",
		},
		func() float64 { return float64(m.FramesProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "alertai_read_errors_total",
			Help: "Total camera read errors",
		},
		func() float64 { return float64(m.ReadErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "alertai_detector_errors_total",
			Help: "Total detector failures",
		},
		func() float64 { return float64(m.DetectorErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "alertai_detect_latency_ms",
			Help: "Latency of the last detector call in milliseconds",
		},
		func() float64 { return float64(m.DetectLatencyMs.Load()) },
	))

	m.detectLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "alertai_detect_duration_seconds",
		Help:    "Detector latency per frame",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
	m.detections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alertai_detections_total",
		Help: "Frames in which a category was detected",
	}, []string{"category"})
	m.alertsFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alertai_alerts_fired_total",
		Help: "Alerts fired per category",
	}, []string{"category"})
	m.notificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alertai_notifications_sent_total",
		Help: "Notifications delivered per channel",
	}, []string{"channel"})
	m.notificationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alertai_notification_errors_total",
		Help: "Failed notifications per channel",
	}, []string{"channel"})
	m.categoryActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "alertai_category_active",
		Help: "Whether a category was detected in the latest frame (0/1)",
	}, []string{"category"})

	m.registry.MustRegister(m.detectLatency, m.detections, m.alertsFired,
		m.notificationsSent, m.notificationErrors, m.categoryActive)
}

// ObserveFrame records one processed frame: detector latency and the categories
// present in it.
func (m *Metrics) ObserveFrame(latency time.Duration, present map[string]float64) {
	m.FramesProcessed.Add(1)
	m.DetectLatencyMs.Store(uint64(latency.Milliseconds()))
	m.detectLatency.Observe(latency.Seconds())
	for category := range present {
		m.detections.WithLabelValues(category).Inc()
	}
}

// ObserveState updates the per-category active gauge from a debouncer snapshot.
func (m *Metrics) ObserveState(snap state.Snapshot) {
	for category, st := range snap {
		v := 0.0
		if st.Active {
			v = 1
		}
		m.categoryActive.WithLabelValues(category).Set(v)
	}
}

// Publish counts a fired alert. It makes Metrics an alerter.Sink.
func (m *Metrics) Publish(event alerter.AlertEvent) {
	m.alertsFired.WithLabelValues(event.Category).Inc()
}

// ObserveDelivery counts a notification outcome. It matches alerter.DeliveryObserver.
func (m *Metrics) ObserveDelivery(channel string, err error) {
	if err != nil {
		m.notificationErrors.WithLabelValues(channel).Inc()
		return
	}
	m.notificationsSent.WithLabelValues(channel).Inc()
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr until ctx is cancelled.
func (m *Metrics) StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
