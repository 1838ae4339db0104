package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
)

// Provider names the secret backend holding TLS material
type Provider string

const (
	ProviderNone  Provider = ""
	ProviderLocal Provider = "local"
	ProviderAWS   Provider = "aws"
	ProviderVault Provider = "vault"
)

// Config selects and configures one secret backend
type Config struct {
	Provider  Provider
	LocalPath string
	AWS       *AWSSecretsManagerConfig
	Vault     *VaultConfig
}

// New creates the configured secret manager. It returns nil, nil when no provider is configured.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	switch cfg.Provider {
	case ProviderNone:
		return nil, nil
	case ProviderLocal:
		return NewLocalSecretManager(cfg.LocalPath, logger), nil
	case ProviderAWS:
		if cfg.AWS == nil {
			return nil, fmt.Errorf("aws secret provider selected without configuration")
		}
		return NewAWSSecretsManagerAdapter(ctx, cfg.AWS, logger)
	case ProviderVault:
		if cfg.Vault == nil {
			return nil, fmt.Errorf("vault secret provider selected without configuration")
		}
		return NewVaultAdapter(ctx, cfg.Vault, logger)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", cfg.Provider)
	}
}
