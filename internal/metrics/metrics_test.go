package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/transfer/chunked"
)

func TestCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.ChunkCompleted(chunked.Upload, 4194304)
	c.ChunkCompleted(chunked.Upload, 1611392)
	c.ChunkRetried(chunked.Upload)
	c.ChunkFailed(chunked.Download)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.chunks.WithLabelValues("upload", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.chunks.WithLabelValues("download", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retries.WithLabelValues("upload")))
	assert.Equal(t, 5805696.0, testutil.ToFloat64(c.bytes.WithLabelValues("upload")))
}

func TestNew_ReusesRegisteredCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(reg)
	require.NoError(t, err)
	second, err := New(reg)
	require.NoError(t, err)

	first.ChunkRetried(chunked.Download)
	second.ChunkRetried(chunked.Download)

	assert.Same(t, first.retries, second.retries)
	assert.Equal(t, 2.0, testutil.ToFloat64(first.retries.WithLabelValues("download")))
}

func TestCollector_WithEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	engine := chunked.New(chunked.Options{Observer: c})
	plan, err := chunked.NewPlan(chunked.Download, 25, 10)
	require.NoError(t, err)

	var out discard
	_, err = engine.Download(t.Context(), plan, &out, func(_ context.Context, _ chunked.Chunk, _ []byte) error {
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.chunks.WithLabelValues("download", "success")))
	assert.Equal(t, 25.0, testutil.ToFloat64(c.bytes.WithLabelValues("download")))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
