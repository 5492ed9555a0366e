package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	doseLogsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dose_logs_written_total",
			Help: "Total number of dose log rows written",
		},
		[]string{"outcome"}, // taken, missed
	)

	doseLogsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dose_logs_rejected_total",
			Help: "Total number of dose log attempts rejected",
		},
		[]string{"reason"}, // too_soon, conflict, inactive
	)

	patientLogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_logins_total",
			Help: "Total number of patient self-service login attempts",
		},
		[]string{"outcome"}, // found, no_match, ambiguous, invalid
	)

	adherenceComputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adherence_computations_total",
			Help: "Total number of adherence score computations",
		},
	)

	remindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Total number of dose reminders dispatched",
		},
		[]string{"channel", "status"},
	)

	legacyRecordsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legacy_records_imported_total",
			Help: "Total number of records imported from the legacy EHR",
		},
		[]string{"kind"}, // patient, medication
	)
)

// RecordDoseLog increments the dose log write counter
func RecordDoseLog(taken bool) {
	outcome := "taken"
	if !taken {
		outcome = "missed"
	}
	doseLogsWritten.WithLabelValues(outcome).Inc()
}

// RecordDoseRejection increments the dose log rejection counter
func RecordDoseRejection(reason string) {
	doseLogsRejected.WithLabelValues(reason).Inc()
}

// RecordPatientLogin increments the login outcome counter
func RecordPatientLogin(outcome string) {
	patientLogins.WithLabelValues(outcome).Inc()
}

// RecordAdherenceComputation increments the adherence computation counter
func RecordAdherenceComputation() {
	adherenceComputed.Inc()
}

// RecordReminder increments the reminder dispatch counter
func RecordReminder(channel, status string) {
	remindersSent.WithLabelValues(channel, status).Inc()
}

// RecordLegacyImport increments the legacy import counter
func RecordLegacyImport(kind string, n int) {
	legacyRecordsImported.WithLabelValues(kind).Add(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// normalizePath collapses path parameters to keep label cardinality bounded
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if len(part) == 36 && strings.Count(part, "-") == 4 {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
