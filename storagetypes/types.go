// Package storagetypes provides shared type definitions for the storage module.
package storagetypes

import (
	"log/slog"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// ProgressTracker defines the interface for tracking transfer progress.
// Implementations can provide real-time progress updates during uploads and downloads.
type ProgressTracker interface {
	// Update is called after every completed chunk with the cumulative byte count.
	// totalBytes is -1 when the size of the transfer is not known in advance.
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the transfer completes successfully
	Complete()

	// Error is called when the transfer fails
	Error(err error)
}

// ProgressFunc adapts a plain callback to ProgressTracker.
type ProgressFunc func(current, total int64)

// Update calls f.
func (f ProgressFunc) Update(current, total int64) {
	if f != nil {
		f(current, total)
	}
}

// Complete is a no-op.
func (f ProgressFunc) Complete() {}

// Error is a no-op.
func (f ProgressFunc) Error(error) {}

// ByteRange is an inclusive byte range. A negative End reads to the end of the
// blob or file.
type ByteRange struct {
	Start int64
	End   int64
}

// UploadResult contains the result of an upload operation.
type UploadResult struct {
	// Container is the container, share or bucket written to
	Container string

	// Name is the blob name, file path or object key written to
	Name string

	// Size is the number of bytes uploaded
	Size int64

	// ETag is the entity tag of the resulting blob, file or object
	ETag string

	// LastModified is the server timestamp of the final request, when reported
	LastModified time.Time

	// Chunks is the number of chunk requests issued (0 for a single put)
	Chunks int

	// Duration is how long the upload took
	Duration time.Duration
}

// DownloadResult contains the result of a download operation.
type DownloadResult struct {
	// Container is the container, share or bucket read from
	Container string

	// Name is the blob name, file path or object key read from
	Name string

	// Size is the number of bytes written to the destination
	Size int64

	// ETag is the entity tag of the blob, file or object
	ETag string

	// ContentType is the stored content type, when reported
	ContentType string

	// Chunks is the number of ranged requests issued (0 for a single get)
	Chunks int

	// Duration is how long the download took
	Duration time.Duration
}

// Configuration types for functional options

// ClientConfig holds configuration for the storage client.
type ClientConfig struct {
	BlobEndpoint      string
	FileEndpoint      string
	MaxConnections    int
	MaxRetries        int
	RetryWait         time.Duration
	MaxSinglePutSize  int64
	MaxBlockSize      int64
	MaxSingleGetSize  int64
	MaxChunkGetSize   int64
	MaxRangeSize      int64
	Logger            *slog.Logger
	Filesystem        billy.Filesystem
	MetricsRegisterer prometheus.Registerer
}

// TransferOptionConfig holds per-call configuration via functional options.
// Zero values fall back to the client configuration.
type TransferOptionConfig struct {
	MaxConnections  int
	MaxRetries      int
	RetryWait       time.Duration
	ProgressTracker ProgressTracker
	ContentType     string
	Metadata        map[string]string
	Range           *ByteRange
}

type (
	// Option is a functional option for configuring the storage client.
	Option func(*ClientConfig)
	// TransferOption is a functional option for configuring a single transfer.
	TransferOption func(*TransferOptionConfig)
)
