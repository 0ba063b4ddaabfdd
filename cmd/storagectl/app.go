package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/input-output-hk/catalyst-forge-libs/storage"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/config"
	"github.com/input-output-hk/catalyst-forge-libs/storage/s3"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

// app carries the state shared by all commands.
type app struct {
	v          *viper.Viper
	configFile string
	quiet      bool

	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
	stderr io.Writer
	stdout io.Writer

	// Client factories; tests replace them with in-memory services.
	newAzure func(ctx context.Context) (*storage.Client, error)
	newS3    func(ctx context.Context) (*s3.Client, error)
}

func newApp() *app {
	a := &app{
		v:      viper.New(),
		stderr: os.Stderr,
		stdout: os.Stdout,
	}
	a.newAzure = a.azureClient
	a.newS3 = a.s3Client
	return a
}

// setup loads the configuration and creates the logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, closer, err := newLogger(cfg.Log, a.stderr)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closer = closer
	return nil
}

func (a *app) close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// newLogger writes JSON logs to stderr and, when a file is configured, to a
// rotating log file.
func newLogger(cfg config.LogConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var (
		w      = stderr
		closer io.Closer
	)
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		w = io.MultiWriter(stderr, rotator)
		closer = rotator
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), closer, nil
}

// credential builds the Azure credential selected by the configuration.
func credential(cfg config.AccountConfig) (storage.Credential, error) {
	if cfg.Emulator && cfg.Auth == config.AuthSharedKey && cfg.Key == "" {
		return storage.EmulatorCredential(), nil
	}
	switch cfg.Auth {
	case config.AuthSharedKey:
		return storage.SharedKeyCredential{AccountName: cfg.Name, AccountKey: cfg.Key}, nil
	case config.AuthSAS:
		return storage.SASCredential{AccountName: cfg.Name, Token: cfg.SASToken}, nil
	case config.AuthAnonymous:
		return storage.AnonymousCredential{AccountName: cfg.Name}, nil
	case config.AuthToken:
		return storage.TokenCredential{AccountName: cfg.Name}, nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth)
}

func (a *app) azureClient(ctx context.Context) (*storage.Client, error) {
	if a.cfg.Account.KeySecretID != "" && a.cfg.Account.Key == "" {
		sm, err := config.NewSecretsManager(ctx, a.cfg.S3)
		if err != nil {
			return nil, err
		}
		if err := a.cfg.ResolveAccountKey(ctx, sm); err != nil {
			return nil, err
		}
	}

	cred, err := credential(a.cfg.Account)
	if err != nil {
		return nil, err
	}

	opts := []storagetypes.Option{
		storage.WithLogger(a.logger),
		storage.WithDefaultMaxConnections(a.cfg.Transfer.MaxConnections),
		storage.WithDefaultMaxRetries(a.cfg.Transfer.MaxRetries),
		storage.WithDefaultRetryWait(a.cfg.Transfer.RetryWait),
	}
	if a.cfg.Account.Emulator {
		opts = append(opts, storage.WithEmulator())
	}
	if a.cfg.Account.BlobEndpoint != "" {
		opts = append(opts, storage.WithBlobEndpoint(a.cfg.Account.BlobEndpoint))
	}
	if a.cfg.Account.FileEndpoint != "" {
		opts = append(opts, storage.WithFileEndpoint(a.cfg.Account.FileEndpoint))
	}
	return storage.New(cred, opts...)
}

func (a *app) s3Client(ctx context.Context) (*s3.Client, error) {
	return s3.New(ctx,
		s3.WithRegion(a.cfg.S3.Region),
		s3.WithEndpoint(a.cfg.S3.Endpoint),
		s3.WithForcePathStyle(a.cfg.S3.PathStyle),
		s3.WithPartSize(a.cfg.S3.PartSize),
		s3.WithLogger(a.logger),
		s3.WithDefaultMaxConnections(a.cfg.Transfer.MaxConnections),
		s3.WithDefaultMaxRetries(a.cfg.Transfer.MaxRetries),
		s3.WithDefaultRetryWait(a.cfg.Transfer.RetryWait),
	)
}
