package storage

import (
	"context"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/testutil"
)

type staticToken struct{}

func (staticToken) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "token"}, nil
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cred      Credential
		wantErr   error
		filesErr  error
		wantFiles bool
	}{
		{
			name:      "shared key",
			cred:      SharedKeyCredential{AccountName: "account", AccountKey: EmulatorAccountKey},
			wantFiles: true,
		},
		{
			name:      "sas",
			cred:      SASCredential{AccountName: "account", Token: "?sv=2024-01-01&sig=abc"},
			wantFiles: true,
		},
		{
			name:      "anonymous",
			cred:      AnonymousCredential{AccountName: "account"},
			wantFiles: true,
		},
		{
			name:     "token has no file service",
			cred:     TokenCredential{AccountName: "account", Credential: staticToken{}},
			filesErr: storageerrors.ErrUnsupportedCredential,
		},
		{
			name:    "nil credential",
			cred:    nil,
			wantErr: storageerrors.ErrInvalidInput,
		},
		{
			name:    "missing account",
			cred:    AnonymousCredential{},
			wantErr: storageerrors.ErrInvalidInput,
		},
		{
			name:    "malformed key",
			cred:    SharedKeyCredential{AccountName: "account", AccountKey: "not base64!"},
			wantErr: storageerrors.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.cred)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client.blobs)
			assert.Equal(t, tt.wantFiles, client.files != nil)
			if tt.filesErr != nil {
				_, err := client.CreateFileFromText(t.Context(), "share", "", "file.txt", "hello")
				assert.ErrorIs(t, err, tt.filesErr)
			}
		})
	}
}

func TestNew_Emulator(t *testing.T) {
	client, err := New(EmulatorCredential(), WithEmulator())
	require.NoError(t, err)
	assert.Equal(t, EmulatorBlobEndpoint, client.config.BlobEndpoint)
	assert.Empty(t, client.config.FileEndpoint)

	_, err = client.GetFileToBytes(t.Context(), "share", "", "file.txt")
	assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)

	client, err = New(EmulatorCredential(), WithEmulator(), WithFileEndpoint("http://127.0.0.1:10004/devstoreaccount1"))
	require.NoError(t, err)
	assert.NotNil(t, client.files)
}

func TestNew_Defaults(t *testing.T) {
	client, err := New(AnonymousCredential{AccountName: "account"})
	require.NoError(t, err)

	cfg := client.config
	assert.Equal(t, "https://account.blob.core.windows.net/", cfg.BlobEndpoint)
	assert.Equal(t, "https://account.file.core.windows.net/", cfg.FileEndpoint)
	assert.Equal(t, 1, cfg.MaxConnections)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, DefaultRetryWait, cfg.RetryWait)
	assert.Equal(t, int64(64*1024*1024), cfg.MaxSinglePutSize)
	assert.Equal(t, int64(4*1024*1024), cfg.MaxBlockSize)
	assert.Equal(t, int64(64*1024*1024), cfg.MaxSingleGetSize)
	assert.Equal(t, int64(4*1024*1024), cfg.MaxChunkGetSize)
	assert.Equal(t, int64(4*1024*1024), cfg.MaxRangeSize)
	assert.NotNil(t, client.logger)
	assert.NotNil(t, client.fs)
	assert.Nil(t, client.observer)
}

func TestNewWithAPI_InvalidSettings(t *testing.T) {
	_, err := NewWithAPI(testutil.NewBlobStore(), nil, WithDefaultMaxConnections(-1))
	assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)
}

func TestNewWithAPI_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := testutil.NewBlobStore("container")
	client, err := NewWithAPI(store, nil,
		WithMetrics(reg),
		WithMaxSinglePutSize(8),
		WithMaxBlockSize(8),
		WithDefaultRetryWait(0),
	)
	require.NoError(t, err)
	require.NotNil(t, client.observer)

	_, err = client.CreateBlobFromBytes(t.Context(), "container", "blob", make([]byte, 20))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "storage_transfer_chunks_total")
	assert.Contains(t, names, "storage_transfer_bytes_total")
}

func TestConvertAzureError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "blob not found", err: testutil.ResponseError(404, "BlobNotFound"), want: storageerrors.ErrNotFound},
		{name: "resource not found", err: testutil.ResponseError(404, "ResourceNotFound"), want: storageerrors.ErrNotFound},
		{name: "container not found", err: testutil.ResponseError(404, "ContainerNotFound"), want: storageerrors.ErrContainerNotFound},
		{name: "share not found", err: testutil.ResponseError(404, "ShareNotFound"), want: storageerrors.ErrContainerNotFound},
		{name: "bare 404", err: testutil.ResponseError(404, ""), want: storageerrors.ErrNotFound},
		{
			name: "chunk failure keeps both",
			err:  &storageerrors.ChunkError{Index: 1, Attempts: 5, Err: testutil.ResponseError(404, "ContainerNotFound")},
			want: storageerrors.ErrContainerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertAzureError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, convertAzureError(nil))

	other := testutil.ResponseError(500, "InternalError")
	assert.Equal(t, other, convertAzureError(other))
}
