package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/semmidev/s3cleaner/internal/domain"
)

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	cleanRuns        *prometheus.CounterVec
	objectsScanned   *prometheus.CounterVec
	objectsMatched   *prometheus.CounterVec
	objectsDeleted   *prometheus.CounterVec
	batchFailures    *prometheus.CounterVec
	listingAborts    *prometheus.CounterVec
	cleanDuration    *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpRequestTimes *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cleanRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3cleaner_clean_runs_total",
				Help: "Total number of bucket clean runs.",
			},
			[]string{"bucket"},
		),
		objectsScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3cleaner_objects_scanned_total",
				Help: "Objects observed while enumerating buckets for cleaning.",
			},
			[]string{"bucket"},
		),
		objectsMatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3cleaner_objects_matched_total",
				Help: "Objects that matched the extension and age filter.",
			},
			[]string{"bucket"},
		),
		objectsDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3cleaner_objects_deleted_total",
				Help: "Objects the storage service reported as deleted.",
			},
			[]string{"bucket"},
		),
		batchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3cleaner_batch_failures_total",
				Help: "Batch delete calls that failed as a whole.",
			},
			[]string{"bucket"},
		),
		listingAborts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3cleaner_listing_aborts_total",
				Help: "Clean runs whose enumeration stopped early on a listing error.",
			},
			[]string{"bucket"},
		),
		cleanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "s3cleaner_clean_duration_seconds",
				Help:    "Wall time of a clean run.",
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
			},
			[]string{"bucket"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3cleaner_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"path", "status"},
		),
		httpRequestTimes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "s3cleaner_http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
	}

	m.registry.MustRegister(
		m.cleanRuns,
		m.objectsScanned,
		m.objectsMatched,
		m.objectsDeleted,
		m.batchFailures,
		m.listingAborts,
		m.cleanDuration,
		m.httpRequests,
		m.httpRequestTimes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)

	return m
}

// ObserveClean records the outcome of one clean run.
func (m *Metrics) ObserveClean(result domain.CleanResult) {
	bucket := result.Bucket
	m.cleanRuns.WithLabelValues(bucket).Inc()
	m.objectsScanned.WithLabelValues(bucket).Add(float64(result.Scanned))
	m.objectsMatched.WithLabelValues(bucket).Add(float64(result.Matched))
	m.objectsDeleted.WithLabelValues(bucket).Add(float64(result.Deleted))
	m.batchFailures.WithLabelValues(bucket).Add(float64(result.FailedBatches))
	if result.ListingAborted {
		m.listingAborts.WithLabelValues(bucket).Inc()
	}
	m.cleanDuration.WithLabelValues(bucket).Observe(result.Duration.Seconds())
}

func (m *Metrics) ObserveRequest(path string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.httpRequestTimes.WithLabelValues(path).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
