// Package metrics exports chunk transfer counters to Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/transfer/chunked"
)

const namespace = "storage_transfer"

// Collector counts chunk outcomes. It implements chunked.Observer.
type Collector struct {
	chunks  *prometheus.CounterVec
	retries *prometheus.CounterVec
	bytes   *prometheus.CounterVec
}

var _ chunked.Observer = (*Collector)(nil)

// New registers the transfer counters with reg. Registering twice against the
// same registerer reuses the counters already registered.
func New(reg prometheus.Registerer) (*Collector, error) {
	chunks, err := register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunk requests that reached a final outcome, by direction and result.",
		},
		[]string{"direction", "result"},
	))
	if err != nil {
		return nil, err
	}

	retries, err := register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Failed chunk attempts that were retried, by direction.",
		},
		[]string{"direction"},
	))
	if err != nil {
		return nil, err
	}

	bytes, err := register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes moved by successful chunks, by direction.",
		},
		[]string{"direction"},
	))
	if err != nil {
		return nil, err
	}

	return &Collector{chunks: chunks, retries: retries, bytes: bytes}, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

// ChunkCompleted records a successful chunk.
func (c *Collector) ChunkCompleted(mode chunked.Mode, n int64) {
	c.chunks.WithLabelValues(mode.String(), "success").Inc()
	c.bytes.WithLabelValues(mode.String()).Add(float64(n))
}

// ChunkRetried records a failed attempt that will be retried.
func (c *Collector) ChunkRetried(mode chunked.Mode) {
	c.retries.WithLabelValues(mode.String()).Inc()
}

// ChunkFailed records a chunk that exhausted its retries.
func (c *Collector) ChunkFailed(mode chunked.Mode) {
	c.chunks.WithLabelValues(mode.String(), "failure").Inc()
}
