package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	azuriteImage    = "mcr.microsoft.com/azure-storage/azurite:latest"
	azuriteBlobPort = "10000/tcp"

	// AzuriteAccount is the well-known development storage account.
	AzuriteAccount = "devstoreaccount1"
)

// AzuriteContainer wraps an Azurite blob emulator container for testing.
type AzuriteContainer struct {
	container    testcontainers.Container
	blobEndpoint string
}

// NewAzuriteContainer creates and starts an Azurite container serving the blob service.
func NewAzuriteContainer(ctx context.Context, t *testing.T) (*AzuriteContainer, error) {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        azuriteImage,
			Cmd:          []string{"azurite-blob", "--blobHost", "0.0.0.0", "--skipApiVersionCheck", "--loose"},
			ExposedPorts: []string{azuriteBlobPort},
			WaitingFor: wait.ForListeningPort(azuriteBlobPort).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Azurite container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, azuriteBlobPort)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &AzuriteContainer{
		container:    container,
		blobEndpoint: fmt.Sprintf("http://%s:%s/%s", host, port.Port(), AzuriteAccount),
	}, nil
}

// BlobEndpoint returns the account-scoped blob endpoint URL.
func (c *AzuriteContainer) BlobEndpoint() string {
	return c.blobEndpoint
}

// Terminate stops and removes the Azurite container.
func (c *AzuriteContainer) Terminate(ctx context.Context) error {
	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			return fmt.Errorf("failed to terminate container: %w", err)
		}
	}
	return nil
}

// SetupAzuriteTest starts Azurite for a test and registers its cleanup.
// It returns the blob endpoint.
func SetupAzuriteTest(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := NewAzuriteContainer(ctx, t)
	if err != nil {
		t.Fatalf("Failed to create Azurite container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Azurite container: %v", err)
		}
	})
	return container.BlobEndpoint()
}
