package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
)

type mockSecrets struct {
	GetSecretValueFunc func(context.Context, *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
	calls              int
}

func (m *mockSecrets) GetSecretValue(
	ctx context.Context,
	params *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	m.calls++
	return m.GetSecretValueFunc(ctx, params)
}

func secretString(value string) *mockSecrets {
	return &mockSecrets{
		GetSecretValueFunc: func(context.Context, *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
			return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORAGECTL_ACCOUNT_AUTH", AuthAnonymous)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Transfer.MaxConnections)
	assert.Equal(t, 5, cfg.Transfer.MaxRetries)
	assert.Equal(t, time.Second, cfg.Transfer.RetryWait)
	assert.Equal(t, int64(8*1024*1024), cfg.S3.PartSize)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "storagectl.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
account:
  name: fromfile
  key: a2V5
transfer:
  max_connections: 4
  retry_wait: 250ms
log:
  level: debug
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("STORAGECTL_TRANSFER_MAX_RETRIES=9\n"), 0o600))
	t.Setenv("STORAGECTL_ACCOUNT_NAME", "fromenv")
	t.Cleanup(func() { os.Unsetenv("STORAGECTL_TRANSFER_MAX_RETRIES") })

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Account.Name)
	assert.Equal(t, "a2V5", cfg.Account.Key)
	assert.Equal(t, 4, cfg.Transfer.MaxConnections)
	assert.Equal(t, 9, cfg.Transfer.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Transfer.RetryWait)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(viper.New(), "/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Account:  AccountConfig{Name: "acct", Auth: AuthSharedKey, Key: "a2V5"},
			Transfer: TransferConfig{MaxConnections: 1, MaxRetries: 5, RetryWait: time.Second},
			Log:      LogConfig{Level: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "key from secret", mutate: func(c *Config) { c.Account.Key = ""; c.Account.KeySecretID = "id" }},
		{name: "emulator needs no key", mutate: func(c *Config) { c.Account.Key = ""; c.Account.Emulator = true }},
		{name: "missing key", mutate: func(c *Config) { c.Account.Key = "" }, wantErr: true},
		{name: "key and secret", mutate: func(c *Config) { c.Account.KeySecretID = "id" }, wantErr: true},
		{name: "sas without token", mutate: func(c *Config) { c.Account.Auth = AuthSAS }, wantErr: true},
		{name: "token", mutate: func(c *Config) { c.Account.Auth = AuthToken }},
		{name: "unknown auth", mutate: func(c *Config) { c.Account.Auth = "password" }, wantErr: true},
		{name: "negative connections", mutate: func(c *Config) { c.Transfer.MaxConnections = -1 }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.Transfer.MaxRetries = -1 }, wantErr: true},
		{name: "negative wait", mutate: func(c *Config) { c.Transfer.RetryWait = -time.Second }, wantErr: true},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_ResolveAccountKey(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr error
	}{
		{name: "bare key", secret: "  c2VjcmV0\n", want: "c2VjcmV0"},
		{name: "json key", secret: `{"key": "c2VjcmV0"}`, want: "c2VjcmV0"},
		{name: "json account_key", secret: `{"account_key": "c2VjcmV0"}`, want: "c2VjcmV0"},
		{name: "json without key", secret: `{"user": "x"}`, wantErr: storageerrors.ErrInvalidInput},
		{name: "bad json", secret: `{"key": 1}`, wantErr: storageerrors.ErrInvalidInput},
		{name: "empty", secret: "", wantErr: storageerrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Account: AccountConfig{KeySecretID: "storage/key"}}
			err := cfg.ResolveAccountKey(t.Context(), secretString(tt.secret))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Account.Key)
		})
	}
}

func TestConfig_ResolveAccountKey_Skips(t *testing.T) {
	sm := secretString("unused")

	cfg := &Config{Account: AccountConfig{Key: "explicit", KeySecretID: "id"}}
	require.NoError(t, cfg.ResolveAccountKey(t.Context(), sm))
	assert.Equal(t, "explicit", cfg.Account.Key)

	cfg = &Config{}
	require.NoError(t, cfg.ResolveAccountKey(t.Context(), sm))
	assert.Equal(t, 0, sm.calls)
}

func TestConfig_ResolveAccountKey_NotFound(t *testing.T) {
	sm := &mockSecrets{
		GetSecretValueFunc: func(_ context.Context, in *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
			assert.Equal(t, "missing", aws.ToString(in.SecretId))
			return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
		},
	}

	cfg := &Config{Account: AccountConfig{KeySecretID: "missing"}}
	err := cfg.ResolveAccountKey(t.Context(), sm)
	assert.True(t, storageerrors.IsNotFound(err))
}
