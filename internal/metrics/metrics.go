// Package metrics exposes Prometheus collectors for the API.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "despachante"

var (
	// Registry holds the API's collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	}, []string{"method", "path"})

	uploadedFiles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "uploads",
		Name:      "files_total",
		Help:      "Documents processed by upload-and-link, by outcome.",
	}, []string{"outcome"})

	submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "uploads",
		Name:      "submissions_total",
		Help:      "Upload-and-link submissions, by service type and outcome.",
	}, []string{"service", "outcome"})

	payments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "charges_total",
		Help:      "Payment charges attempted, by method and outcome.",
	}, []string{"method", "outcome"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		uploadedFiles,
		submissions,
		payments,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request count, latency and in-flight gauge.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordUpload counts stored and failed documents of one submission.
func RecordUpload(serviceType string, stored, failed int) {
	uploadedFiles.WithLabelValues("stored").Add(float64(stored))
	uploadedFiles.WithLabelValues("failed").Add(float64(failed))
	outcome := "ok"
	switch {
	case stored == 0:
		outcome = "failed"
	case failed > 0:
		outcome = "partial"
	}
	submissions.WithLabelValues(serviceLabel(serviceType), outcome).Inc()
}

// RecordPayment counts one charge attempt.
func RecordPayment(method string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	payments.WithLabelValues(method, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath keeps label cardinality bounded: "/api/<endpoint>" for the
// API, the first segment otherwise.
func canonicalPath(raw string) string {
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "/"
	}
	if parts[0] == "api" && len(parts) > 1 {
		return "/api/" + parts[1]
	}
	return "/" + parts[0]
}

func serviceLabel(serviceType string) string {
	serviceType = strings.TrimSpace(serviceType)
	if serviceType == "" {
		return "unknown"
	}
	return serviceType
}
