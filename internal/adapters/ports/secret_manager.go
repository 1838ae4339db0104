package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value     string            // The secret value (e.g., a PEM bundle)
	Version   string            // Secret version identifier
	Metadata  map[string]string // Additional secret metadata
	CreatedAt string            // When this version was created
}

// SecretManagerAdapter defines the port for reading TLS material from a secret management service
// Supports multiple backends: local filesystem, AWS Secrets Manager, HashiCorp Vault
// Implementations cache secrets with a TTL where the backend supports it
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path/name
	// Path format depends on implementation:
	//   - Local: relative file path under the base directory
	//   - AWS: "remote-transport/client-cert" or full ARN
	//   - Vault: "remote-transport/client-cert" under the KV mount
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// GetSecretVersion retrieves a specific version of a secret
	GetSecretVersion(ctx context.Context, path string, version string) (*Secret, error)
}
