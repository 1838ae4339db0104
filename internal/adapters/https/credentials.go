package https

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
	"github.com/kevin07696/remote-transport/pkg/crypto"
)

// MaterialSource says where TLS material comes from. A file path wins over a
// secret path for the same item. An empty version reads the current secret.
type MaterialSource struct {
	// Pinned server CA bundle (PEM)
	ServerCertsFile          string
	ServerCertsSecret        string
	ServerCertsSecretVersion string

	// Client certificate and key (PEM)
	ClientCertFile          string
	ClientKeyFile           string
	ClientCertSecret        string
	ClientKeySecret         string
	ClientCertSecretVersion string
	ClientKeySecretVersion  string
}

// Empty reports whether no material is configured
func (s MaterialSource) Empty() bool {
	return s == MaterialSource{}
}

// Material is loaded TLS material ready to apply to a Config
type Material struct {
	RootCAs      *x509.CertPool
	Certificates []tls.Certificate
}

// Apply copies the material onto cfg
func (m *Material) Apply(cfg *Config) {
	if m == nil {
		return
	}
	if m.RootCAs != nil {
		cfg.RootCAs = m.RootCAs
	}
	if len(m.Certificates) > 0 {
		cfg.Certificates = m.Certificates
	}
}

// LoadMaterial reads the configured CA bundle and client key pair.
// secrets may be nil when only file paths are used.
func LoadMaterial(ctx context.Context, src MaterialSource, secrets ports.SecretManagerAdapter, logger *zap.Logger) (*Material, error) {
	m := &Material{}

	caPEM, err := readPEM(ctx, src.ServerCertsFile, src.ServerCertsSecret, src.ServerCertsSecretVersion, secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificates: %w", err)
	}
	if caPEM != nil {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no PEM certificates found in server certificate bundle")
		}
		m.RootCAs = pool
		fields := []zap.Field{
			zap.String("file", src.ServerCertsFile),
			zap.String("secret", src.ServerCertsSecret),
		}
		if infos, err := crypto.DescribePEM(caPEM); err == nil {
			fields = append(fields, zap.Int("certificates", len(infos)))
		}
		logger.Info("Pinned server certificate bundle loaded", fields...)
	}

	certPEM, err := readPEM(ctx, src.ClientCertFile, src.ClientCertSecret, src.ClientCertSecretVersion, secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}
	keyPEM, err := readPEM(ctx, src.ClientKeyFile, src.ClientKeySecret, src.ClientKeySecretVersion, secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to load client key: %w", err)
	}

	switch {
	case certPEM != nil && keyPEM != nil:
		pair, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, fmt.Errorf("invalid client key pair: %w", err)
		}
		m.Certificates = []tls.Certificate{pair}
		logger.Info("Client certificate loaded",
			zap.String("fingerprint", crypto.Fingerprint(pair.Certificate[0])),
		)
	case certPEM != nil || keyPEM != nil:
		return nil, fmt.Errorf("client certificate and key must be configured together")
	}

	return m, nil
}

func readPEM(ctx context.Context, file, secretPath, version string, secrets ports.SecretManagerAdapter) ([]byte, error) {
	if file != "" {
		return os.ReadFile(file)
	}
	if secretPath == "" {
		return nil, nil
	}
	if secrets == nil {
		return nil, fmt.Errorf("secret %s configured but no secret manager available", secretPath)
	}
	var (
		secret *ports.Secret
		err    error
	)
	if version != "" {
		secret, err = secrets.GetSecretVersion(ctx, secretPath, version)
	} else {
		secret, err = secrets.GetSecret(ctx, secretPath)
	}
	if err != nil {
		return nil, err
	}
	return []byte(secret.Value), nil
}
