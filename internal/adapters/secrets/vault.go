package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
)

// VaultConfig configures reads of PEM material from a Vault KV mount
type VaultConfig struct {
	// Vault server address (e.g., "https://vault.example.com:8200")
	Address string

	// "token" or "approle"
	AuthMethod string
	Token      string
	RoleID     string
	SecretID   string

	// Vault Enterprise namespace
	Namespace string

	MountPath string // KV mount (default "secret")
	KVVersion string // "v1" or "v2" (default "v2")

	// Field of the KV document holding the PEM text (default "pem")
	PEMField string

	CacheTTL    time.Duration
	EnableCache bool
}

// DefaultVaultConfig returns default configuration for Vault adapter
func DefaultVaultConfig(address string) *VaultConfig {
	return &VaultConfig{
		Address:     address,
		AuthMethod:  "token",
		MountPath:   "secret",
		KVVersion:   "v2",
		PEMField:    "pem",
		CacheTTL:    5 * time.Minute,
		EnableCache: true,
	}
}

// kvDocument is one KV entry split into its PEM and the remaining string fields
type kvDocument struct {
	pem       string
	labels    map[string]string
	version   string
	createdAt string
}

type vaultAdapter struct {
	logical *vault.Logical
	config  *VaultConfig
	logger  *zap.Logger
	cache   *secretCache
}

// NewVaultAdapter logs in to Vault and returns a PEM reader for cfg.MountPath
func NewVaultAdapter(ctx context.Context, cfg *VaultConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	if cfg.PEMField == "" {
		cfg.PEMField = "pem"
	}

	clientCfg := vault.DefaultConfig()
	clientCfg.Address = cfg.Address
	client, err := vault.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := vaultLogin(ctx, client, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}
	client.SetToken(token)

	logger.Info("Vault adapter initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("mount_path", cfg.MountPath),
		zap.String("kv_version", cfg.KVVersion),
		zap.String("pem_field", cfg.PEMField),
	)

	return &vaultAdapter{
		logical: client.Logical(),
		config:  cfg,
		logger:  logger,
		cache:   newSecretCache(cfg.EnableCache, cfg.CacheTTL),
	}, nil
}

// vaultLogin returns the client token for the configured auth method
func vaultLogin(ctx context.Context, client *vault.Client, cfg *VaultConfig) (string, error) {
	switch cfg.AuthMethod {
	case "token":
		if cfg.Token == "" {
			return "", fmt.Errorf("token is required for token auth")
		}
		return cfg.Token, nil
	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return "", fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return "", fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp == nil || resp.Auth == nil || resp.Auth.ClientToken == "" {
			return "", fmt.Errorf("AppRole login returned no auth info")
		}
		return resp.Auth.ClientToken, nil
	default:
		return "", fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

func (a *vaultAdapter) kv2() bool {
	return a.config.KVVersion != "v1"
}

// GetSecret reads the current PEM at path
func (a *vaultAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := a.cache.get(path); cached != nil {
		a.logger.Debug("Secret retrieved from cache", zap.String("path", path))
		return cached, nil
	}

	secret, err := a.fetch(ctx, path, "")
	if err != nil {
		return nil, err
	}
	a.cache.set(path, secret)
	return secret, nil
}

// GetSecretVersion reads a pinned version of path. Only KV v2 keeps versions.
func (a *vaultAdapter) GetSecretVersion(ctx context.Context, path string, version string) (*ports.Secret, error) {
	if !a.kv2() {
		return nil, fmt.Errorf("GetSecretVersion requires KV v2")
	}
	return a.fetch(ctx, path, version)
}

func (a *vaultAdapter) fetch(ctx context.Context, path, version string) (*ports.Secret, error) {
	apiPath := a.config.MountPath + "/" + path
	var query map[string][]string
	if a.kv2() {
		apiPath = a.config.MountPath + "/data/" + path
		if version != "" {
			query = map[string][]string{"version": {version}}
		}
	}

	start := time.Now()
	raw, err := a.logical.ReadWithDataWithContext(ctx, apiPath, query)
	if err != nil {
		a.logger.Error("Failed to read PEM from Vault",
			zap.String("path", path),
			zap.String("version", version),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("secret not found: %s", path)
	}

	doc, err := a.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", path, err)
	}

	a.logger.Debug("PEM read from Vault",
		zap.String("path", path),
		zap.String("version", doc.version),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &ports.Secret{
		Value:     doc.pem,
		Version:   doc.version,
		CreatedAt: doc.createdAt,
		Metadata:  doc.labels,
	}, nil
}

// decode unwraps the KV response. v2 nests the fields under "data" next to
// "metadata"; v1 returns the fields directly and has no versions.
func (a *vaultAdapter) decode(raw *vault.Secret) (*kvDocument, error) {
	fields := raw.Data
	doc := &kvDocument{version: "1"}

	if a.kv2() {
		nested, ok := raw.Data["data"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid KV v2 response: missing data")
		}
		fields = nested

		if meta, ok := raw.Data["metadata"].(map[string]interface{}); ok {
			switch v := meta["version"].(type) {
			case json.Number:
				doc.version = v.String()
			case float64:
				doc.version = fmt.Sprintf("%d", int64(v))
			}
			doc.createdAt, _ = meta["created_time"].(string)
		}
	}

	pem, _ := fields[a.config.PEMField].(string)
	if !strings.Contains(pem, "-----BEGIN ") {
		return nil, fmt.Errorf("field %q does not hold PEM data", a.config.PEMField)
	}
	doc.pem = pem

	doc.labels = make(map[string]string)
	for k, v := range fields {
		if s, ok := v.(string); ok && k != a.config.PEMField {
			doc.labels[k] = s
		}
	}
	return doc, nil
}
