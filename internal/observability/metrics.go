package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	notificationsTotal *prometheus.CounterVec
	dispatchFailures   prometheus.Counter
	transitionsTotal   *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telesite_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "telesite_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telesite_notifications_dispatched_total",
		Help: "Jumlah notifikasi yang dibuat per jenis event.",
	}, []string{"event"})
	dispatchFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telesite_notification_dispatch_failures_total",
		Help: "Jumlah fan-out notifikasi yang gagal.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telesite_survey_transitions_total",
		Help: "Jumlah transisi status survei per target dan hasil.",
	}, []string{"target", "outcome"})
	registry.MustRegister(requests, duration, notifications, dispatchFailures, transitions)
	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		notificationsTotal: notifications,
		dispatchFailures:   dispatchFailures,
		transitionsTotal:   transitions,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// AddNotifications menambah hitungan notifikasi yang dibuat.
func (m *Metrics) AddNotifications(event string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.notificationsTotal.WithLabelValues(event).Add(float64(count))
}

// RecordDispatchFailure mencatat fan-out yang gagal.
func (m *Metrics) RecordDispatchFailure() {
	if m == nil {
		return
	}
	m.dispatchFailures.Inc()
}

// RecordTransition mencatat hasil transisi status survei.
func (m *Metrics) RecordTransition(target, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(target, outcome).Inc()
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
