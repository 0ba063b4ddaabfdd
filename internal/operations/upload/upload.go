package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/file"

	"github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/blobapi"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/fileapi"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/transfer/chunked"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

const (
	// DefaultMaxSinglePutSize is the largest block blob sent in one request.
	DefaultMaxSinglePutSize = 64 * 1024 * 1024

	// DefaultBlockSize is the block, append block and file range size.
	DefaultBlockSize = chunked.DefaultChunkSize
)

// Request describes one upload.
type Request struct {
	// Container is the blob container, file share or bucket
	Container string

	// Directory is the Azure Files directory (unused elsewhere)
	Directory string

	// Name is the blob name, file name or object key
	Name string

	// Size is the number of bytes to read from the source, or chunked.UnknownSize
	Size int64

	// ContentType is stored with the blob, file or object when set
	ContentType string

	// Metadata is stored with the blob, file or object when set
	Metadata map[string]string

	// Progress receives cumulative byte counts. Optional.
	Progress func(current, total int64)
}

// Config configures an Uploader.
type Config struct {
	// Transfer is the engine configuration. Its Progress field is replaced by
	// the progress function of each request.
	Transfer chunked.Options

	// BlockSize is the chunk size. Defaults to DefaultBlockSize.
	BlockSize int64

	// MaxSinglePutSize is the block blob single-request threshold.
	// Defaults to DefaultMaxSinglePutSize.
	MaxSinglePutSize int64
}

// Uploader runs uploads against the narrow SDK interfaces.
type Uploader struct {
	transfer  chunked.Options
	blockSize int64
	singlePut int64
	logger    *slog.Logger
}

// New creates an Uploader.
func New(cfg Config) *Uploader {
	u := &Uploader{
		transfer:  cfg.Transfer,
		blockSize: cfg.BlockSize,
		singlePut: cfg.MaxSinglePutSize,
		logger:    cfg.Transfer.Logger,
	}
	if u.blockSize <= 0 {
		u.blockSize = DefaultBlockSize
	}
	if u.singlePut <= 0 {
		u.singlePut = DefaultMaxSinglePutSize
	}
	if u.logger == nil {
		u.logger = slog.New(slog.DiscardHandler)
	}
	return u
}

func (u *Uploader) engine(req Request, sequential bool) *chunked.Engine {
	opts := u.transfer
	opts.Progress = req.Progress
	if sequential {
		opts.MaxConnections = 1
	}
	return chunked.New(opts)
}

func (u *Uploader) plan(size, chunkSize int64) (chunked.Plan, error) {
	if size < 0 {
		return chunked.NewStreamingPlan(chunkSize)
	}
	return chunked.NewPlan(chunked.Upload, size, chunkSize)
}

// BlockID returns the block ID of the block starting at offset: the base64
// encoding of the offset zero-padded to 32 digits. IDs of one blob share a
// length and sort in offset order.
func BlockID(offset int64) string {
	return base64.StdEncoding.EncodeToString(fmt.Appendf(nil, "%032d", offset))
}

func azureMetadata(m map[string]string) map[string]*string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]*string, len(m))
	for k, v := range m {
		out[k] = &v
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func body(buf []byte) io.ReadSeekCloser {
	return streaming.NopCloser(bytes.NewReader(buf))
}

// readSized reads exactly size bytes from src.
func readSized(src io.Reader, size int64) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(src, data); err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return data, nil
}

// BlockBlob uploads src as a block blob. A known size below the single-put
// threshold is sent with one Upload request. Larger or unknown sizes stage
// one block per chunk and commit the block list in offset order.
func (u *Uploader) BlockBlob(
	ctx context.Context,
	api blobapi.BlockBlobAPI,
	req Request,
	src io.Reader,
) (*storagetypes.UploadResult, error) {
	start := time.Now()
	headers := &blob.HTTPHeaders{BlobContentType: optional(req.ContentType)}

	if req.Size >= 0 && req.Size < u.singlePut {
		u.logger.DebugContext(ctx, "uploading block blob in a single request",
			"container", req.Container, "blob", req.Name, "size", req.Size)

		data, err := readSized(src, req.Size)
		if err != nil {
			return nil, err
		}
		report(req.Progress, 0, req.Size)
		resp, err := api.Upload(ctx, body(data), &blockblob.UploadOptions{
			HTTPHeaders: headers,
			Metadata:    azureMetadata(req.Metadata),
		})
		if err != nil {
			return nil, err
		}
		report(req.Progress, req.Size, req.Size)
		return result(req, req.Size, 0, start, etagOf(resp.ETag), resp.LastModified), nil
	}

	plan, err := u.plan(req.Size, u.blockSize)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		ids = make(map[int]string)
	)
	res, err := u.engine(req, false).Upload(ctx, plan, src,
		func(ctx context.Context, c chunked.Chunk, buf []byte) error {
			id := BlockID(c.Offset)
			if _, err := api.StageBlock(ctx, id, body(buf), nil); err != nil {
				return err
			}
			mu.Lock()
			ids[c.Index] = id
			mu.Unlock()
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	blockList := make([]string, len(ids))
	for i := range blockList {
		blockList[i] = ids[i]
	}
	resp, err := api.CommitBlockList(ctx, blockList, &blockblob.CommitBlockListOptions{
		HTTPHeaders: headers,
		Metadata:    azureMetadata(req.Metadata),
	})
	if err != nil {
		return nil, err
	}
	return result(req, res.Bytes, res.Chunks, start, etagOf(resp.ETag), resp.LastModified), nil
}

// CreateAppendBlob creates an empty append blob, replacing any existing blob.
func (u *Uploader) CreateAppendBlob(
	ctx context.Context,
	api blobapi.AppendBlobAPI,
	req Request,
) (*storagetypes.UploadResult, error) {
	start := time.Now()
	resp, err := api.Create(ctx, &appendblob.CreateOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: optional(req.ContentType)},
		Metadata:    azureMetadata(req.Metadata),
	})
	if err != nil {
		return nil, err
	}
	return result(req, 0, 0, start, etagOf(resp.ETag), resp.LastModified), nil
}

// AppendBlob appends src to an existing append blob one block at a time.
// Blocks are always sent sequentially so they land in source order.
func (u *Uploader) AppendBlob(
	ctx context.Context,
	api blobapi.AppendBlobAPI,
	req Request,
	src io.Reader,
) (*storagetypes.UploadResult, error) {
	start := time.Now()
	plan, err := u.plan(req.Size, u.blockSize)
	if err != nil {
		return nil, err
	}

	var last appendblob.AppendBlockResponse
	res, err := u.engine(req, true).Upload(ctx, plan, src,
		func(ctx context.Context, _ chunked.Chunk, buf []byte) error {
			resp, err := api.AppendBlock(ctx, body(buf), nil)
			if err != nil {
				return err
			}
			last = resp
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return result(req, res.Bytes, res.Chunks, start, etagOf(last.ETag), last.LastModified), nil
}

// File creates an Azure file at its full size and writes src into it range by range.
// The size must be known up front.
func (u *Uploader) File(
	ctx context.Context,
	api fileapi.FileAPI,
	req Request,
	src io.Reader,
) (*storagetypes.UploadResult, error) {
	start := time.Now()
	if req.Size < 0 {
		return nil, fmt.Errorf("%w: file uploads need a known size", errors.ErrInvalidInput)
	}
	plan, err := chunked.NewPlan(chunked.Upload, req.Size, u.blockSize)
	if err != nil {
		return nil, err
	}

	created, err := api.Create(ctx, req.Size, &file.CreateOptions{
		HTTPHeaders: &file.HTTPHeaders{ContentType: optional(req.ContentType)},
		Metadata:    azureMetadata(req.Metadata),
	})
	if err != nil {
		return nil, err
	}
	u.logger.DebugContext(ctx, "created file",
		"share", req.Container, "directory", req.Directory, "file", req.Name, "size", req.Size)

	var (
		mu           sync.Mutex
		etag         = etagOf(created.ETag)
		lastModified = created.LastModified
	)
	res, err := u.engine(req, false).Upload(ctx, plan, src,
		func(ctx context.Context, c chunked.Chunk, buf []byte) error {
			resp, err := api.UploadRange(ctx, c.Offset, body(buf), nil)
			if err != nil {
				return err
			}
			mu.Lock()
			etag, lastModified = etagOf(resp.ETag), resp.LastModified
			mu.Unlock()
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return result(req, res.Bytes, res.Chunks, start, etag, lastModified), nil
}

func etagOf(etag *azcore.ETag) string {
	if etag == nil {
		return ""
	}
	return string(*etag)
}

func report(progress func(current, total int64), current, total int64) {
	if progress != nil {
		progress(current, total)
	}
}

func result(
	req Request,
	size int64,
	chunks int,
	start time.Time,
	etag string,
	lastModified *time.Time,
) *storagetypes.UploadResult {
	res := &storagetypes.UploadResult{
		Container: req.Container,
		Name:      req.Name,
		Size:      size,
		ETag:      etag,
		Chunks:    chunks,
		Duration:  time.Since(start),
	}
	if lastModified != nil {
		res.LastModified = *lastModified
	}
	return res
}
