package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "planynov_"

	ResultSuccess = "success"
	ResultError   = "error"

	rowsAccepted = "accepted"
	rowsRejected = "rejected"
)

var (
	registerOnce sync.Once

	ingestTotal   *prometheus.CounterVec
	ingestRows    *prometheus.CounterVec
	ingestLatency *prometheus.HistogramVec
	datasetSize   prometheus.Gauge
)

// Init registers ingestion metrics with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		ingestTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_total",
				Help: "Schedule file ingestions by format and result",
			},
			[]string{"format", "result"},
		)
		ingestRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_rows_total",
				Help: "Schedule rows processed by outcome",
			},
			[]string{"outcome"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Schedule ingestion latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)
		datasetSize = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "dataset_records",
				Help: "Number of occupancy records currently served",
			},
		)

		prometheus.MustRegister(ingestTotal, ingestRows, ingestLatency, datasetSize)
	})
}

// ObserveIngest records one ingestion attempt.
func ObserveIngest(format, result string, accepted, rejected int, d time.Duration) {
	if ingestTotal == nil {
		return
	}
	ingestTotal.WithLabelValues(format, result).Inc()
	ingestLatency.WithLabelValues(format).Observe(d.Seconds())
	if accepted > 0 {
		ingestRows.WithLabelValues(rowsAccepted).Add(float64(accepted))
	}
	if rejected > 0 {
		ingestRows.WithLabelValues(rowsRejected).Add(float64(rejected))
	}
}

// SetDatasetSize records the size of the dataset after a replace.
func SetDatasetSize(n int) {
	if datasetSize == nil {
		return
	}
	datasetSize.Set(float64(n))
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
