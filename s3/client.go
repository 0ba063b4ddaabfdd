package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/operations/download"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/transfer/chunked"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

const (
	// DefaultPartSize is the multipart part size.
	DefaultPartSize = 8 * 1024 * 1024

	// DefaultRegion is used when neither the options nor the shared
	// configuration name a region.
	DefaultRegion = "us-east-1"
)

// Client transfers objects to and from S3.
// It is safe for concurrent use.
type Client struct {
	api      s3api.S3API
	config   Config
	logger   *slog.Logger
	fs       billy.Filesystem
	observer chunked.Observer
}

func defaultConfig() Config {
	return Config{
		MaxConnections:   1,
		MaxRetries:       chunked.DefaultMaxAttempts,
		RetryWait:        chunked.DefaultRetryWait,
		PartSize:         DefaultPartSize,
		MaxSingleGetSize: download.DefaultMaxSingleGetSize,
		MaxChunkGetSize:  chunked.DefaultChunkSize,
	}
}

// New creates an S3 client. Credentials come from the default AWS
// credential chain unless WithAWSConfig is given. The SDK's own retries are
// disabled; every part is retried by the transfer engine instead.
//
// Example:
//
//	client, err := s3.New(ctx,
//	    s3.WithRegion("us-west-2"),
//	    s3.WithDefaultMaxConnections(4),
//	)
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var awsCfg aws.Config
	if cfg.AWSConfig != nil {
		awsCfg = *cfg.AWSConfig
	} else {
		loaded, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, storageerrors.NewError("client initialization", err)
		}
		awsCfg = loaded
	}

	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	} else if awsCfg.Region == "" {
		awsCfg.Region = DefaultRegion
	}
	awsCfg.RetryMaxAttempts = 1

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newClient(api, cfg)
}

// NewWithClient creates a client over a custom S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(api s3api.S3API, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, storageerrors.NewError("client initialization", storageerrors.ErrInvalidInput).
			WithMessage("S3 client cannot be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newClient(api, cfg)
}

func newClient(api s3api.S3API, cfg Config) (*Client, error) {
	if err := validation.ValidateTransferSettings(cfg.MaxConnections, cfg.MaxRetries, cfg.RetryWait); err != nil {
		return nil, err
	}

	c := &Client{
		api:    api,
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

func validateObject(bucket, key string, cfg *storagetypes.TransferOptionConfig) error {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return err
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return err
	}
	if err := validation.ValidateTransferSettings(cfg.MaxConnections, cfg.MaxRetries, cfg.RetryWait); err != nil {
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
	op, bucket, key string,
	cfg *storagetypes.TransferOptionConfig,
	err error,
) error {
	if cfg.ProgressTracker != nil {
		cfg.ProgressTracker.Error(err)
	}
	c.logger.DebugContext(ctx, "transfer rejected",
		"op", op, "bucket", bucket, "key", key, "error", err)
	return err
}

func (c *Client) finish(
	ctx context.Context,
	op, bucket, key string,
	cfg *storagetypes.TransferOptionConfig,
	start time.Time,
	err error,
) error {
	if err == nil {
		if cfg.ProgressTracker != nil {
			cfg.ProgressTracker.Complete()
		}
		c.logger.DebugContext(ctx, "transfer finished",
			"op", op, "bucket", bucket, "key", key, "duration", time.Since(start))
		return nil
	}

	err = convertS3Error(err)
	if cfg.ProgressTracker != nil {
		cfg.ProgressTracker.Error(err)
	}
	c.logger.ErrorContext(ctx, "transfer failed",
		"op", op, "bucket", bucket, "key", key, "code", storageerrors.CodeOf(err), "error", err)
	return storageerrors.NewObjectError(op, bucket, key, err)
}

// convertS3Error maps S3 API error codes to the package sentinels, keeping
// the original error in the chain.
func convertS3Error(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storageerrors.ErrNotFound) || errors.Is(err, storageerrors.ErrContainerNotFound) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %w", storageerrors.ErrNotFound, err)
		case "NoSuchBucket":
			return fmt.Errorf("%w: %w", storageerrors.ErrContainerNotFound, err)
		}
	}
	return err
}
