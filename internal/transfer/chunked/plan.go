package chunked

import (
	"fmt"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
)

// Mode is the direction of a transfer.
type Mode int

const (
	// Upload reads chunks from a local source and sends them to the remote.
	Upload Mode = iota
	// Download fetches chunks from the remote and writes them to a local sink.
	Download
)

func (m Mode) String() string {
	switch m {
	case Upload:
		return "upload"
	case Download:
		return "download"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

const (
	// DefaultChunkSize is the block, range and ranged-get size used by Azure Storage.
	DefaultChunkSize int64 = 4 * 1024 * 1024

	// UnknownSize is the total reported for streaming plans.
	UnknownSize int64 = -1
)

// Chunk is one contiguous byte range of a transfer and the unit of one remote request.
// Offsets are relative to the start of the transfer.
type Chunk struct {
	Index  int
	Offset int64
	Length int64
}

// End returns the exclusive end offset of the chunk.
func (c Chunk) End() int64 {
	return c.Offset + c.Length
}

// Plan describes how a transfer is split. It is immutable once built.
type Plan struct {
	mode      Mode
	totalSize int64
	chunkSize int64
}

// NewPlan builds a plan for a transfer of totalSize bytes in chunkSize pieces.
func NewPlan(mode Mode, totalSize, chunkSize int64) (Plan, error) {
	if chunkSize <= 0 {
		return Plan{}, fmt.Errorf("%w: chunk size must be positive, got %d", storageerrors.ErrInvalidInput, chunkSize)
	}
	if totalSize < 0 {
		return Plan{}, fmt.Errorf("%w: total size must be known, got %d", storageerrors.ErrInvalidInput, totalSize)
	}
	if mode != Upload && mode != Download {
		return Plan{}, fmt.Errorf("%w: unknown transfer mode %v", storageerrors.ErrInvalidInput, mode)
	}
	return Plan{mode: mode, totalSize: totalSize, chunkSize: chunkSize}, nil
}

// NewStreamingPlan builds an upload plan of unknown size. The source is read
// chunkSize bytes at a time until it is exhausted, always sequentially.
func NewStreamingPlan(chunkSize int64) (Plan, error) {
	if chunkSize <= 0 {
		return Plan{}, fmt.Errorf("%w: chunk size must be positive, got %d", storageerrors.ErrInvalidInput, chunkSize)
	}
	return Plan{mode: Upload, totalSize: UnknownSize, chunkSize: chunkSize}, nil
}

// Mode returns the transfer direction.
func (p Plan) Mode() Mode { return p.mode }

// ChunkSize returns the fixed chunk size.
func (p Plan) ChunkSize() int64 { return p.chunkSize }

// TotalSize returns the transfer size, or UnknownSize for streaming plans.
func (p Plan) TotalSize() int64 { return p.totalSize }

// Streaming reports whether the total size is unknown.
func (p Plan) Streaming() bool { return p.totalSize < 0 }

// NumChunks returns the number of chunks, or -1 for streaming plans.
func (p Plan) NumChunks() int {
	if p.Streaming() {
		return -1
	}
	return int((p.totalSize + p.chunkSize - 1) / p.chunkSize)
}

// Chunks returns the chunks covering [0, TotalSize) in index order. Every
// chunk is ChunkSize long except possibly the last. Streaming plans and empty
// transfers yield no chunks.
func (p Plan) Chunks() []Chunk {
	n := p.NumChunks()
	if n <= 0 {
		return nil
	}
	chunks := make([]Chunk, n)
	for i := range chunks {
		offset := int64(i) * p.chunkSize
		chunks[i] = Chunk{
			Index:  i,
			Offset: offset,
			Length: min(p.chunkSize, p.totalSize-offset),
		}
	}
	return chunks
}

// bufferSize is the largest buffer any chunk of the plan needs.
func (p Plan) bufferSize() int {
	if !p.Streaming() && p.totalSize < p.chunkSize {
		return int(p.totalSize)
	}
	return int(p.chunkSize)
}
