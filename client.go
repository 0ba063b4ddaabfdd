package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	blobservice "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
	fileservice "github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/service"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/blobapi"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/fileapi"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/localfile"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/operations/download"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/operations/upload"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/transfer/chunked"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

const (
	// DefaultMaxConnections runs transfers sequentially.
	DefaultMaxConnections = 1

	// DefaultMaxRetries is the total attempts per chunk.
	DefaultMaxRetries = chunked.DefaultMaxAttempts

	// DefaultRetryWait is the fixed wait between attempts.
	DefaultRetryWait = chunked.DefaultRetryWait

	// DefaultMaxSinglePutSize is the largest block blob uploaded in one request.
	DefaultMaxSinglePutSize = upload.DefaultMaxSinglePutSize

	// DefaultMaxBlockSize is the block and append block size.
	DefaultMaxBlockSize = upload.DefaultBlockSize

	// DefaultMaxSingleGetSize is the smallest range downloaded in chunks.
	DefaultMaxSingleGetSize = download.DefaultMaxSingleGetSize

	// DefaultMaxChunkGetSize is the ranged download request size.
	DefaultMaxChunkGetSize = download.DefaultChunkSize

	// DefaultMaxRangeSize is the Azure Files upload range size.
	DefaultMaxRangeSize = 4 * 1024 * 1024

	// DefaultContentType is used when no content type is given or detected.
	DefaultContentType = localfile.DefaultContentType
)

// Client transfers block blobs, append blobs and Azure Files.
// It is safe for concurrent use.
type Client struct {
	blobs blobapi.ServiceAPI

	// files is nil when the file service is unavailable; filesErr says why.
	files    fileapi.ServiceAPI
	filesErr error

	config   storagetypes.ClientConfig
	logger   *slog.Logger
	fs       billy.Filesystem
	observer chunked.Observer
}

func defaultConfig(account string) storagetypes.ClientConfig {
	cfg := storagetypes.ClientConfig{
		MaxConnections:   DefaultMaxConnections,
		MaxRetries:       DefaultMaxRetries,
		RetryWait:        DefaultRetryWait,
		MaxSinglePutSize: DefaultMaxSinglePutSize,
		MaxBlockSize:     DefaultMaxBlockSize,
		MaxSingleGetSize: DefaultMaxSingleGetSize,
		MaxChunkGetSize:  DefaultMaxChunkGetSize,
		MaxRangeSize:     DefaultMaxRangeSize,
	}
	if account != "" {
		cfg.BlobEndpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", account)
		cfg.FileEndpoint = fmt.Sprintf("https://%s.file.core.windows.net/", account)
	}
	return cfg
}

// New creates a client authenticated with cred.
//
// Example:
//
//	client, err := storage.New(storage.EmulatorCredential(), storage.WithEmulator())
func New(cred Credential, opts ...storagetypes.Option) (*Client, error) {
	if cred == nil {
		return nil, storageerrors.NewError("client initialization", storageerrors.ErrInvalidInput).
			WithMessage("credential cannot be nil")
	}

	cfg := defaultConfig(cred.account())
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BlobEndpoint == "" {
		return nil, storageerrors.NewError("client initialization", storageerrors.ErrInvalidInput).
			WithMessage("account name or blob endpoint is required")
	}

	blobClient, err := cred.blobClient(cfg.BlobEndpoint, &blobservice.ClientOptions{ClientOptions: sdkClientOptions()})
	if err != nil {
		return nil, storageerrors.NewError("client initialization", err)
	}

	var (
		files    fileapi.ServiceAPI
		filesErr error
	)
	if cfg.FileEndpoint == "" {
		filesErr = fmt.Errorf("%w: no file service endpoint configured", storageerrors.ErrInvalidInput)
	} else {
		fileClient, err := cred.fileClient(cfg.FileEndpoint, &fileservice.ClientOptions{ClientOptions: sdkClientOptions()})
		switch {
		case errors.Is(err, storageerrors.ErrUnsupportedCredential):
			filesErr = err
		case err != nil:
			return nil, storageerrors.NewError("client initialization", err)
		default:
			files = fileapi.NewService(fileClient)
		}
	}

	c, err := newClient(blobapi.NewService(blobClient), files, cfg)
	if err != nil {
		return nil, err
	}
	c.filesErr = filesErr
	return c, nil
}

// NewWithAPI creates a client over custom service implementations.
// This is primarily used for testing. A nil files disables file operations.
func NewWithAPI(blobs blobapi.ServiceAPI, files fileapi.ServiceAPI, opts ...storagetypes.Option) (*Client, error) {
	cfg := defaultConfig("")
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := newClient(blobs, files, cfg)
	if err != nil {
		return nil, err
	}
	if files == nil {
		c.filesErr = fmt.Errorf("%w: no file service configured", storageerrors.ErrInvalidInput)
	}
	return c, nil
}

func newClient(blobs blobapi.ServiceAPI, files fileapi.ServiceAPI, cfg storagetypes.ClientConfig) (*Client, error) {
	if err := validation.ValidateTransferSettings(cfg.MaxConnections, cfg.MaxRetries, cfg.RetryWait); err != nil {
		return nil, err
	}

	c := &Client{
		blobs:  blobs,
		files:  files,
		config: cfg,
		logger: cfg.Logger,
		fs:     cfg.Filesystem,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.fs == nil {
		c.fs = osfs.New("/")
	}
	if cfg.MetricsRegisterer != nil {
		collector, err := metrics.New(cfg.MetricsRegisterer)
		if err != nil {
			return nil, storageerrors.NewError("client initialization", err)
		}
		c.observer = collector
	}
	return c, nil
}

// transferConfig starts from the client defaults and applies opts.
func (c *Client) transferConfig(opts []storagetypes.TransferOption) *storagetypes.TransferOptionConfig {
	cfg := &storagetypes.TransferOptionConfig{
		MaxConnections: c.config.MaxConnections,
		MaxRetries:     c.config.MaxRetries,
		RetryWait:      c.config.RetryWait,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func validateTransfer(cfg *storagetypes.TransferOptionConfig) error {
	if err := validation.ValidateTransferSettings(cfg.MaxConnections, cfg.MaxRetries, cfg.RetryWait); err != nil {
		return err
	}
	if err := validation.ValidateMetadata(cfg.Metadata); err != nil {
		return err
	}
	if err := validation.ValidateContentType(cfg.ContentType); err != nil {
		return err
	}
	if cfg.Range != nil {
		return validation.ValidateRange(cfg.Range.Start, cfg.Range.End)
	}
	return nil
}

func (c *Client) engineOptions(cfg *storagetypes.TransferOptionConfig) chunked.Options {
	return chunked.Options{
		MaxConnections: cfg.MaxConnections,
		Retry:          chunked.RetryPolicy{MaxAttempts: cfg.MaxRetries, Wait: cfg.RetryWait},
		Observer:       c.observer,
		Logger:         c.logger,
	}
}

func (c *Client) uploader(cfg *storagetypes.TransferOptionConfig, blockSize int64) *upload.Uploader {
	return upload.New(upload.Config{
		Transfer:         c.engineOptions(cfg),
		BlockSize:        blockSize,
		MaxSinglePutSize: c.config.MaxSinglePutSize,
	})
}

func (c *Client) downloader(cfg *storagetypes.TransferOptionConfig) *download.Downloader {
	return download.New(download.Config{
		Transfer:         c.engineOptions(cfg),
		MaxSingleGetSize: c.config.MaxSingleGetSize,
		ChunkSize:        c.config.MaxChunkGetSize,
	})
}

func progressFunc(cfg *storagetypes.TransferOptionConfig) func(current, total int64) {
	if cfg.ProgressTracker == nil {
		return nil
	}
	return cfg.ProgressTracker.Update
}

// finish reports the outcome to the progress tracker and wraps err with the
// operation context.
// reject reports an error raised before any request was made. The tracker
// still sees the failure.
func (c *Client) reject(
	ctx context.Context,
	op, container, name string,
	cfg *storagetypes.TransferOptionConfig,
	err error,
) error {
	if cfg.ProgressTracker != nil {
		cfg.ProgressTracker.Error(err)
	}
	c.logger.DebugContext(ctx, "transfer rejected",
		"op", op, "container", container, "name", name, "error", err)
	return err
}

func (c *Client) finish(
	ctx context.Context,
	op, container, name string,
	cfg *storagetypes.TransferOptionConfig,
	start time.Time,
	err error,
) error {
	if err == nil {
		if cfg.ProgressTracker != nil {
			cfg.ProgressTracker.Complete()
		}
		c.logger.DebugContext(ctx, "transfer finished",
			"op", op, "container", container, "name", name, "duration", time.Since(start))
		return nil
	}

	err = convertAzureError(err)
	if cfg.ProgressTracker != nil {
		cfg.ProgressTracker.Error(err)
	}
	c.logger.ErrorContext(ctx, "transfer failed",
		"op", op, "container", container, "name", name, "code", storageerrors.CodeOf(err), "error", err)
	return storageerrors.NewObjectError(op, container, name, err)
}

// convertAzureError maps service errors to the package sentinels, keeping the
// original error in the chain.
func convertAzureError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storageerrors.ErrNotFound) || errors.Is(err, storageerrors.ErrContainerNotFound) {
		return err
	}

	switch {
	case bloberror.HasCode(err, bloberror.ContainerNotFound):
		return fmt.Errorf("%w: %w", storageerrors.ErrContainerNotFound, err)
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ResourceNotFound):
		return fmt.Errorf("%w: %w", storageerrors.ErrNotFound, err)
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.ErrorCode == "ShareNotFound":
			return fmt.Errorf("%w: %w", storageerrors.ErrContainerNotFound, err)
		case respErr.StatusCode == 404:
			return fmt.Errorf("%w: %w", storageerrors.ErrNotFound, err)
		}
	}
	return err
}
