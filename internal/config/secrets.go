package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
)

// SecretGetter is the part of the Secrets Manager API used to resolve the
// account key. It is satisfied by *secretsmanager.Client.
type SecretGetter interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

var _ SecretGetter = (*secretsmanager.Client)(nil)

// NewSecretsManager creates a Secrets Manager client in the configured
// region. A custom endpoint (e.g. LocalStack) is honored.
func NewSecretsManager(ctx context.Context, cfg S3Config) (*secretsmanager.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// ResolveAccountKey fills Account.Key from Secrets Manager when
// Account.KeySecretID is set. The secret is either the bare key or a JSON
// object with a "key" (or "account_key") field.
func (c *Config) ResolveAccountKey(ctx context.Context, sm SecretGetter) error {
	if c.Account.KeySecretID == "" || c.Account.Key != "" {
		return nil
	}

	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(c.Account.KeySecretID),
	})
	if err != nil {
		var rnf *types.ResourceNotFoundException
		if errors.As(err, &rnf) {
			return storageerrors.NewError("resolveAccountKey", fmt.Errorf("%w: %w", storageerrors.ErrNotFound, err)).
				WithName(c.Account.KeySecretID)
		}
		return storageerrors.NewError("resolveAccountKey", err).WithName(c.Account.KeySecretID)
	}

	var value string
	switch {
	case out.SecretString != nil:
		value = *out.SecretString
	case out.SecretBinary != nil:
		value = string(out.SecretBinary)
	}

	key, err := parseAccountKey(value)
	if err != nil {
		return storageerrors.NewError("resolveAccountKey", err).WithName(c.Account.KeySecretID)
	}
	c.Account.Key = key
	return nil
}

func parseAccountKey(value string) (string, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "{") {
		var fields map[string]string
		if err := json.Unmarshal([]byte(value), &fields); err != nil {
			return "", fmt.Errorf("%w: secret is not a JSON object of strings: %w", storageerrors.ErrInvalidInput, err)
		}
		for _, name := range []string{"key", "account_key"} {
			if key := fields[name]; key != "" {
				return key, nil
			}
		}
		return "", fmt.Errorf("%w: secret has no \"key\" field", storageerrors.ErrInvalidInput)
	}
	if value == "" {
		return "", fmt.Errorf("%w: secret is empty", storageerrors.ErrInvalidInput)
	}
	return value, nil
}
