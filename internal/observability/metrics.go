package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	filterApplied     *prometheus.CounterVec
	datasetRecords    prometheus.Gauge
	malformedRows     prometheus.Counter
	loadFailures      prometheus.Counter
	advisoryDuration  *prometheus.HistogramVec
	advisoryErrors    *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry so several
// instances can coexist (tests build one per server).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		filterApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "filter_applications_total",
			Help: "Filter applications by view.",
		}, []string{"view"}),
		datasetRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dataset_records",
			Help: "Records held by the current dataset.",
		}),
		malformedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dataset_malformed_rows_total",
			Help: "Rows dropped because their value count did not match the header.",
		}),
		loadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dataset_load_failures_total",
			Help: "Dataset loads that failed.",
		}),
		advisoryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "advisory_http_duration_seconds",
			Help:    "Histogram of advisory service request durations by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		advisoryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "advisory_http_errors_total",
			Help: "Advisory service failures by endpoint.",
		}, []string{"endpoint"}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.filterApplied,
		m.datasetRecords,
		m.malformedRows,
		m.loadFailures,
		m.advisoryDuration,
		m.advisoryErrors,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) FilterApplied(view string) {
	if m == nil {
		return
	}
	m.filterApplied.WithLabelValues(view).Inc()
}

func (m *Metrics) DatasetLoaded(records, malformed int) {
	if m == nil {
		return
	}
	m.datasetRecords.Set(float64(records))
	m.malformedRows.Add(float64(malformed))
}

func (m *Metrics) DatasetLoadFailed() {
	if m == nil {
		return
	}
	m.loadFailures.Inc()
}

func (m *Metrics) AdvisoryRequest(endpoint string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.advisoryDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	if !success {
		m.advisoryErrors.WithLabelValues(endpoint).Inc()
	}
}
