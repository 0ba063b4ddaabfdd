package storage

import (
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	blobservice "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
	fileservice "github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/service"

	"github.com/input-output-hk/catalyst-forge-libs/storage/errors"
)

const (
	// EmulatorAccountName is the Azurite development account.
	EmulatorAccountName = "devstoreaccount1"

	// EmulatorAccountKey is the published Azurite development key.
	EmulatorAccountKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

	// EmulatorBlobEndpoint is Azurite's default blob endpoint.
	EmulatorBlobEndpoint = "http://127.0.0.1:10000/" + EmulatorAccountName
)

// Credential authenticates a Client. The set of credentials is closed:
// SharedKeyCredential, SASCredential, AnonymousCredential and TokenCredential.
type Credential interface {
	account() string
	blobClient(endpoint string, opts *blobservice.ClientOptions) (*blobservice.Client, error)
	fileClient(endpoint string, opts *fileservice.ClientOptions) (*fileservice.Client, error)
}

// SharedKeyCredential signs requests with the storage account key.
type SharedKeyCredential struct {
	AccountName string
	AccountKey  string
}

// EmulatorCredential returns the shared key of the Azurite development account.
func EmulatorCredential() SharedKeyCredential {
	return SharedKeyCredential{AccountName: EmulatorAccountName, AccountKey: EmulatorAccountKey}
}

func (c SharedKeyCredential) account() string { return c.AccountName }

func (c SharedKeyCredential) blobClient(endpoint string, opts *blobservice.ClientOptions) (*blobservice.Client, error) {
	cred, err := blobservice.NewSharedKeyCredential(c.AccountName, c.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidInput, err)
	}
	return blobservice.NewClientWithSharedKeyCredential(endpoint, cred, opts)
}

func (c SharedKeyCredential) fileClient(endpoint string, opts *fileservice.ClientOptions) (*fileservice.Client, error) {
	cred, err := fileservice.NewSharedKeyCredential(c.AccountName, c.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidInput, err)
	}
	return fileservice.NewClientWithSharedKeyCredential(endpoint, cred, opts)
}

// SASCredential appends a shared access signature to every request.
type SASCredential struct {
	AccountName string

	// Token is the SAS query string, with or without the leading '?'.
	Token string
}

func (c SASCredential) account() string { return c.AccountName }

func (c SASCredential) signed(endpoint string) string {
	token := strings.TrimPrefix(c.Token, "?")
	if strings.Contains(endpoint, "?") {
		return endpoint + "&" + token
	}
	return endpoint + "?" + token
}

func (c SASCredential) blobClient(endpoint string, opts *blobservice.ClientOptions) (*blobservice.Client, error) {
	return blobservice.NewClientWithNoCredential(c.signed(endpoint), opts)
}

func (c SASCredential) fileClient(endpoint string, opts *fileservice.ClientOptions) (*fileservice.Client, error) {
	return fileservice.NewClientWithNoCredential(c.signed(endpoint), opts)
}

// AnonymousCredential sends unauthenticated requests, for public containers.
type AnonymousCredential struct {
	AccountName string
}

func (c AnonymousCredential) account() string { return c.AccountName }

func (c AnonymousCredential) blobClient(endpoint string, opts *blobservice.ClientOptions) (*blobservice.Client, error) {
	return blobservice.NewClientWithNoCredential(endpoint, opts)
}

func (c AnonymousCredential) fileClient(endpoint string, opts *fileservice.ClientOptions) (*fileservice.Client, error) {
	return fileservice.NewClientWithNoCredential(endpoint, opts)
}

// TokenCredential authenticates with Microsoft Entra ID. A nil Credential
// uses azidentity's default credential chain. The file service does not
// accept token credentials for these operations.
type TokenCredential struct {
	AccountName string
	Credential  azcore.TokenCredential
}

func (c TokenCredential) account() string { return c.AccountName }

func (c TokenCredential) blobClient(endpoint string, opts *blobservice.ClientOptions) (*blobservice.Client, error) {
	cred := c.Credential
	if cred == nil {
		def, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, err
		}
		cred = def
	}
	return blobservice.NewClient(endpoint, cred, opts)
}

func (c TokenCredential) fileClient(string, *fileservice.ClientOptions) (*fileservice.Client, error) {
	return nil, fmt.Errorf("%w: token credentials are not supported by the file service",
		errors.ErrUnsupportedCredential)
}

// sdkClientOptions disables the SDK's own retries. Retries are applied per
// chunk by the transfer engine.
func sdkClientOptions() policy.ClientOptions {
	return policy.ClientOptions{
		Retry: policy.RetryOptions{MaxRetries: -1},
	}
}
