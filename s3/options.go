package s3

import (
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for the S3 client.
type Config struct {
	Region            string
	Endpoint          string
	ForcePathStyle    bool
	AWSConfig         *aws.Config
	MaxConnections    int
	MaxRetries        int
	RetryWait         time.Duration
	PartSize          int64
	MaxSingleGetSize  int64
	MaxChunkGetSize   int64
	Logger            *slog.Logger
	Filesystem        billy.Filesystem
	MetricsRegisterer prometheus.Registerer
}

// Option is a functional option for configuring the S3 client.
type Option func(*Config)

// WithRegion sets the AWS region. Default is the region of the shared
// configuration, or us-east-1.
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

// WithEndpoint sets a custom endpoint URL, e.g. for LocalStack or MinIO.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle addresses buckets in the URL path instead of the host name.
func WithForcePathStyle(enabled bool) Option {
	return func(c *Config) {
		c.ForcePathStyle = enabled
	}
}

// WithAWSConfig uses cfg instead of loading the default AWS configuration.
func WithAWSConfig(cfg aws.Config) Option {
	return func(c *Config) {
		c.AWSConfig = &cfg
	}
}

// WithDefaultMaxConnections sets the concurrency used by transfers that do
// not override it. Default is 1 (sequential).
func WithDefaultMaxConnections(n int) Option {
	return func(c *Config) {
		c.MaxConnections = n
	}
}

// WithDefaultMaxRetries sets the total attempts per part for transfers that
// do not override it. Default is 5.
func WithDefaultMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithDefaultRetryWait sets the fixed wait between attempts. Default is one second.
func WithDefaultRetryWait(wait time.Duration) Option {
	return func(c *Config) {
		c.RetryWait = wait
	}
}

// WithPartSize sets the multipart part size. Values below 5 MiB are raised
// to 5 MiB. Default is 8 MiB.
func WithPartSize(size int64) Option {
	return func(c *Config) {
		c.PartSize = size
	}
}

// WithMaxSingleGetSize sets the size from which parallel downloads are
// split into ranges. Default is 64 MiB.
func WithMaxSingleGetSize(size int64) Option {
	return func(c *Config) {
		c.MaxSingleGetSize = size
	}
}

// WithMaxChunkGetSize sets the size of each ranged GET. Default is 4 MiB.
func WithMaxChunkGetSize(size int64) Option {
	return func(c *Config) {
		c.MaxChunkGetSize = size
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithFilesystem sets the filesystem used by path operations.
// Default is the OS filesystem rooted at /.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(c *Config) {
		c.Filesystem = fs
	}
}

// WithMetrics registers transfer counters with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Config) {
		c.MetricsRegisterer = reg
	}
}
