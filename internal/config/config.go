// Package config loads storagectl configuration from a config file, the
// environment and a .env file, and resolves the storage account key.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
)

// EnvPrefix prefixes every environment variable, e.g. STORAGECTL_ACCOUNT_NAME.
const EnvPrefix = "STORAGECTL"

// Config is the complete storagectl configuration.
type Config struct {
	Account  AccountConfig  `mapstructure:"account"`
	Transfer TransferConfig `mapstructure:"transfer"`
	S3       S3Config       `mapstructure:"s3"`
	Log      LogConfig      `mapstructure:"log"`
}

// AccountConfig selects the Azure Storage account and how to authenticate.
type AccountConfig struct {
	Name string `mapstructure:"name"`
	// Auth is one of "shared-key", "sas", "anonymous" or "token".
	Auth         string `mapstructure:"auth"`
	Key          string `mapstructure:"key"`
	KeySecretID  string `mapstructure:"key_secret_id"`
	SASToken     string `mapstructure:"sas_token"`
	BlobEndpoint string `mapstructure:"blob_endpoint"`
	FileEndpoint string `mapstructure:"file_endpoint"`
	Emulator     bool   `mapstructure:"emulator"`
}

// TransferConfig holds the default transfer settings.
type TransferConfig struct {
	MaxConnections int           `mapstructure:"max_connections"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryWait      time.Duration `mapstructure:"retry_wait"`
}

// S3Config configures the S3 backend and the Secrets Manager client.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
	PartSize  int64  `mapstructure:"part_size"`
}

// LogConfig configures logging. An empty File logs to stderr only.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Auth modes.
const (
	AuthSharedKey = "shared-key"
	AuthSAS       = "sas"
	AuthAnonymous = "anonymous"
	AuthToken     = "token"
)

var defaults = map[string]any{
	"account.name":             "",
	"account.auth":             AuthSharedKey,
	"account.key":              "",
	"account.key_secret_id":    "",
	"account.sas_token":        "",
	"account.blob_endpoint":    "",
	"account.file_endpoint":    "",
	"account.emulator":         false,
	"transfer.max_connections": 1,
	"transfer.max_retries":     5,
	"transfer.retry_wait":      time.Second,
	"s3.region":                "",
	"s3.endpoint":              "",
	"s3.path_style":            false,
	"s3.part_size":             int64(8 * 1024 * 1024),
	"log.level":                "info",
	"log.file":                 "",
	"log.max_size_mb":          100,
	"log.max_backups":          3,
	"log.max_age_days":         28,
}

// SetDefaults registers every key with v so that environment variables are
// picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Load reads configuration in increasing precedence: defaults, the config
// file (when configFile is set), the .env file in the working directory, the
// environment, and any flags already bound to v.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return storageerrors.NewError("validateConfig", storageerrors.ErrInvalidInput).
			WithMessage(fmt.Sprintf(format, args...))
	}

	switch c.Account.Auth {
	case AuthSharedKey:
		if !c.Account.Emulator && c.Account.Key == "" && c.Account.KeySecretID == "" {
			return invalid("shared-key auth needs account.key or account.key_secret_id")
		}
	case AuthSAS:
		if c.Account.SASToken == "" {
			return invalid("sas auth needs account.sas_token")
		}
	case AuthAnonymous, AuthToken:
	default:
		return invalid("unknown account.auth %q", c.Account.Auth)
	}
	if c.Account.Key != "" && c.Account.KeySecretID != "" {
		return invalid("account.key and account.key_secret_id are mutually exclusive")
	}

	if c.Transfer.MaxConnections < 0 {
		return invalid("transfer.max_connections cannot be negative")
	}
	if c.Transfer.MaxRetries < 0 {
		return invalid("transfer.max_retries cannot be negative")
	}
	if c.Transfer.RetryWait < 0 {
		return invalid("transfer.retry_wait cannot be negative")
	}
	if c.S3.PartSize < 0 {
		return invalid("s3.part_size cannot be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("unknown log.level %q", c.Log.Level)
	}
	return nil
}
