package sequencer

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the non-blocking observation surface the sequencer calls into
// from inside its critical section. Implementations must never block or
// allocate in a way that could stall a producer.
type Metrics interface {
	ObserveBatchSize(n int)
	SetQueueSize(k int)
	ObserveRejection(reason string)
}

// NoopMetrics discards all observations. Used when a caller does not wire a
// Prometheus registry.
type NoopMetrics struct{}

func (NoopMetrics) ObserveBatchSize(int)    {}
func (NoopMetrics) SetQueueSize(int)        {}
func (NoopMetrics) ObserveRejection(string) {}

// PrometheusMetrics is a Metrics implementation backed by
// github.com/prometheus/client_golang, labeled by partition.
type PrometheusMetrics struct {
	batchSize prometheus.Observer
	queueSize prometheus.Gauge
	rejected  *prometheus.CounterVec
}

var (
	batchSizeHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sequencer",
		Name:      "batch_size",
		Help:      "Number of entries in a sequenced batch.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"partition"})
	queueSizeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sequencer",
		Name:      "queue_size",
		Help:      "Current number of batches buffered in the sequencer's queue.",
	}, []string{"partition"})
	rejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sequencer",
		Name:      "rejected_total",
		Help:      "Number of tryWrite calls rejected by reason.",
	}, []string{"partition", "reason"})
)

var registerOnce sync.Once

// MustRegister registers the sequencer's collectors with reg. Safe to call
// more than once per process; only the first call takes effect, since the
// collectors are process-wide singletons shared by every partition.
func MustRegister(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(batchSizeHistogram, queueSizeGauge, rejectedCounter)
	})
}

// NewPrometheusMetrics returns a Metrics adapter labeled for partitionID. It
// registers the sequencer's collectors with the default Prometheus registry
// on first use.
func NewPrometheusMetrics(partitionID int) *PrometheusMetrics {
	MustRegister(prometheus.DefaultRegisterer)
	label := strconv.Itoa(partitionID)
	return &PrometheusMetrics{
		batchSize: batchSizeHistogram.WithLabelValues(label),
		queueSize: queueSizeGauge.WithLabelValues(label),
		rejected:  rejectedCounter.MustCurryWith(prometheus.Labels{"partition": label}),
	}
}

func (m *PrometheusMetrics) ObserveBatchSize(n int) { m.batchSize.Observe(float64(n)) }
func (m *PrometheusMetrics) SetQueueSize(k int)     { m.queueSize.Set(float64(k)) }
func (m *PrometheusMetrics) ObserveRejection(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}
