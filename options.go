package storage

import (
	"log/slog"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

// Client options.

// WithBlobEndpoint sets the blob service URL.
// Default is https://<account>.blob.core.windows.net/.
func WithBlobEndpoint(endpoint string) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.BlobEndpoint = endpoint
	}
}

// WithFileEndpoint sets the file service URL.
// Default is https://<account>.file.core.windows.net/.
func WithFileEndpoint(endpoint string) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.FileEndpoint = endpoint
	}
}

// WithEmulator points the blob endpoint at a local Azurite instance.
// Azurite has no file service; combine with WithFileEndpoint to use one.
func WithEmulator() storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.BlobEndpoint = EmulatorBlobEndpoint
		c.FileEndpoint = ""
	}
}

// WithDefaultMaxConnections sets the concurrency used by transfers that do
// not override it. Default is 1 (sequential).
func WithDefaultMaxConnections(n int) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.MaxConnections = n
	}
}

// WithDefaultMaxRetries sets the total attempts per chunk for transfers that
// do not override it. Default is 5.
func WithDefaultMaxRetries(n int) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.MaxRetries = n
	}
}

// WithDefaultRetryWait sets the fixed wait between attempts for transfers
// that do not override it. Default is one second.
func WithDefaultRetryWait(wait time.Duration) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.RetryWait = wait
	}
}

// WithMaxSinglePutSize sets the largest block blob uploaded in one request.
// Default is 64 MiB.
func WithMaxSinglePutSize(size int64) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		if size > 0 {
			c.MaxSinglePutSize = size
		}
	}
}

// WithMaxBlockSize sets the block and append block size. Default is 4 MiB.
func WithMaxBlockSize(size int64) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		if size > 0 {
			c.MaxBlockSize = size
		}
	}
}

// WithMaxSingleGetSize sets the smallest range downloaded in chunks when
// more than one connection is allowed. Default is 64 MiB.
func WithMaxSingleGetSize(size int64) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		if size > 0 {
			c.MaxSingleGetSize = size
		}
	}
}

// WithMaxChunkGetSize sets the size of each ranged download request.
// Default is 4 MiB.
func WithMaxChunkGetSize(size int64) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		if size > 0 {
			c.MaxChunkGetSize = size
		}
	}
}

// WithMaxRangeSize sets the Azure Files upload range size. Default is 4 MiB,
// the service maximum.
func WithMaxRangeSize(size int64) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		if size > 0 {
			c.MaxRangeSize = size
		}
	}
}

// WithLogger sets the logger. A nil logger disables logging, which is the default.
func WithLogger(logger *slog.Logger) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.Logger = logger
	}
}

// WithFilesystem sets the filesystem used by the *FromPath and *ToPath
// operations. Default is the OS filesystem.
func WithFilesystem(fs billy.Filesystem) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.Filesystem = fs
	}
}

// WithMetrics registers transfer counters with reg.
func WithMetrics(reg prometheus.Registerer) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.MetricsRegisterer = reg
	}
}

// Transfer options.

// WithMaxConnections bounds the concurrent requests of one transfer.
// 1 runs chunks sequentially. Parallel transfers need positioned I/O.
func WithMaxConnections(n int) storagetypes.TransferOption {
	return func(c *storagetypes.TransferOptionConfig) {
		c.MaxConnections = n
	}
}

// WithMaxRetries sets the total attempts per chunk. Values below 1 mean one attempt.
func WithMaxRetries(n int) storagetypes.TransferOption {
	return func(c *storagetypes.TransferOptionConfig) {
		c.MaxRetries = n
	}
}

// WithRetryWait sets the fixed wait between attempts of a chunk.
func WithRetryWait(wait time.Duration) storagetypes.TransferOption {
	return func(c *storagetypes.TransferOptionConfig) {
		c.RetryWait = wait
	}
}

// WithProgress reports progress to tracker.
func WithProgress(tracker storagetypes.ProgressTracker) storagetypes.TransferOption {
	return func(c *storagetypes.TransferOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithProgressFunc reports progress to fn.
func WithProgressFunc(fn func(current, total int64)) storagetypes.TransferOption {
	return WithProgress(storagetypes.ProgressFunc(fn))
}

// WithContentType sets the stored content type instead of detecting it.
func WithContentType(contentType string) storagetypes.TransferOption {
	return func(c *storagetypes.TransferOptionConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata stores metadata with the blob or file.
func WithMetadata(metadata map[string]string) storagetypes.TransferOption {
	return func(c *storagetypes.TransferOptionConfig) {
		c.Metadata = metadata
	}
}

// WithRange limits a download to the inclusive range [start, end].
// A negative end reads to the end.
func WithRange(start, end int64) storagetypes.TransferOption {
	return func(c *storagetypes.TransferOptionConfig) {
		c.Range = &storagetypes.ByteRange{Start: start, End: end}
	}
}
