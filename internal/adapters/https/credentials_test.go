package https

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kevin07696/remote-transport/pkg/crypto"
	"github.com/kevin07696/remote-transport/test/mocks"
)

// selfSigned returns a PEM certificate and PEM private key for commonName
func selfSigned(t *testing.T, commonName string) ([]byte, []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestMaterialSource_Empty(t *testing.T) {
	assert.True(t, MaterialSource{}.Empty())
	assert.False(t, MaterialSource{ServerCertsFile: "ca.pem"}.Empty())
}

func TestLoadMaterial_Files(t *testing.T) {
	dir := t.TempDir()
	caPEM, _ := selfSigned(t, "pinned-ca")
	certPEM, keyPEM := selfSigned(t, "node")

	src := MaterialSource{
		ServerCertsFile: writeFile(t, dir, "ca.pem", caPEM),
		ClientCertFile:  writeFile(t, dir, "client.pem", certPEM),
		ClientKeyFile:   writeFile(t, dir, "client.key", keyPEM),
	}

	m, err := LoadMaterial(context.Background(), src, nil, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, m.RootCAs)
	require.Len(t, m.Certificates, 1)

	cfg := DefaultConfig("https://example.com")
	m.Apply(cfg)
	assert.Same(t, m.RootCAs, cfg.RootCAs)
	assert.Len(t, cfg.Certificates, 1)
}

func TestLoadMaterial_LogsClientFingerprint(t *testing.T) {
	dir := t.TempDir()
	caPEM, _ := selfSigned(t, "pinned-ca")
	certPEM, keyPEM := selfSigned(t, "node")

	core, logs := observer.New(zap.InfoLevel)
	m, err := LoadMaterial(context.Background(), MaterialSource{
		ServerCertsFile: writeFile(t, dir, "ca.pem", caPEM),
		ClientCertFile:  writeFile(t, dir, "client.pem", certPEM),
		ClientKeyFile:   writeFile(t, dir, "client.key", keyPEM),
	}, nil, zap.New(core))
	require.NoError(t, err)

	pinned := logs.FilterMessage("Pinned server certificate bundle loaded").All()
	require.Len(t, pinned, 1)
	assert.Equal(t, int64(1), pinned[0].ContextMap()["certificates"])

	loaded := logs.FilterMessage("Client certificate loaded").All()
	require.Len(t, loaded, 1)
	assert.Equal(t, crypto.Fingerprint(m.Certificates[0].Certificate[0]), loaded[0].ContextMap()["fingerprint"])
}

func TestLoadMaterial_Secrets(t *testing.T) {
	caPEM, _ := selfSigned(t, "pinned-ca")
	certPEM, keyPEM := selfSigned(t, "node")

	secrets := mocks.NewMockSecretManager()
	secrets.SetSecret("remote/ca", string(caPEM))
	secrets.SetSecret("remote/cert", string(certPEM))
	secrets.SetSecret("remote/key", string(keyPEM))

	src := MaterialSource{
		ServerCertsSecret: "remote/ca",
		ClientCertSecret:  "remote/cert",
		ClientKeySecret:   "remote/key",
	}

	m, err := LoadMaterial(context.Background(), src, secrets, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, m.RootCAs)
	assert.Len(t, m.Certificates, 1)
	assert.Equal(t, []string{"remote/ca", "remote/cert", "remote/key"}, secrets.GetCalls)
}

func TestLoadMaterial_PinnedSecretVersions(t *testing.T) {
	oldCA, _ := selfSigned(t, "old-ca")
	newCA, _ := selfSigned(t, "new-ca")
	certPEM, keyPEM := selfSigned(t, "node")

	secrets := mocks.NewMockSecretManager()
	secrets.SetSecretVersion("remote/ca", "v1", string(oldCA))
	secrets.SetSecretVersion("remote/ca", "v2", string(newCA))
	secrets.SetSecretVersion("remote/cert", "7", string(certPEM))
	secrets.SetSecretVersion("remote/key", "7", string(keyPEM))

	core, logs := observer.New(zap.InfoLevel)
	m, err := LoadMaterial(context.Background(), MaterialSource{
		ServerCertsSecret:        "remote/ca",
		ServerCertsSecretVersion: "v1",
		ClientCertSecret:         "remote/cert",
		ClientCertSecretVersion:  "7",
		ClientKeySecret:          "remote/key",
		ClientKeySecretVersion:   "7",
	}, secrets, zap.New(core))
	require.NoError(t, err)
	require.Len(t, m.Certificates, 1)

	assert.Empty(t, secrets.GetCalls)
	assert.Equal(t, []string{"remote/ca@v1", "remote/cert@7", "remote/key@7"}, secrets.VersionCalls)

	// The pinned bundle is the old CA, not the current one
	block, _ := pem.Decode(oldCA)
	require.NotNil(t, block)
	oldCert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	_, err = oldCert.Verify(x509.VerifyOptions{Roots: m.RootCAs})
	assert.NoError(t, err)
	assert.Len(t, logs.FilterMessage("Pinned server certificate bundle loaded").All(), 1)

	_, err = LoadMaterial(context.Background(), MaterialSource{
		ServerCertsSecret:        "remote/ca",
		ServerCertsSecretVersion: "v9",
	}, secrets, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no version v9")
}

func TestLoadMaterial_FileWinsOverSecret(t *testing.T) {
	dir := t.TempDir()
	caPEM, _ := selfSigned(t, "pinned-ca")

	secrets := mocks.NewMockSecretManager()
	src := MaterialSource{
		ServerCertsFile:   writeFile(t, dir, "ca.pem", caPEM),
		ServerCertsSecret: "remote/ca",
	}

	m, err := LoadMaterial(context.Background(), src, secrets, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, m.RootCAs)
	assert.Empty(t, secrets.GetCalls)
}

func TestLoadMaterial_Errors(t *testing.T) {
	dir := t.TempDir()
	certPEM, _ := selfSigned(t, "node")
	_, otherKey := selfSigned(t, "other")

	tests := []struct {
		name    string
		src     MaterialSource
		secrets *mocks.MockSecretManager
		want    string
	}{
		{
			name: "missing file",
			src:  MaterialSource{ServerCertsFile: filepath.Join(dir, "missing.pem")},
			want: "failed to load server certificates",
		},
		{
			name: "not PEM",
			src:  MaterialSource{ServerCertsFile: writeFile(t, dir, "garbage.pem", []byte("garbage"))},
			want: "no PEM certificates",
		},
		{
			name: "cert without key",
			src:  MaterialSource{ClientCertFile: writeFile(t, dir, "only.pem", certPEM)},
			want: "must be configured together",
		},
		{
			name: "mismatched pair",
			src: MaterialSource{
				ClientCertFile: writeFile(t, dir, "cert.pem", certPEM),
				ClientKeyFile:  writeFile(t, dir, "other.key", otherKey),
			},
			want: "invalid client key pair",
		},
		{
			name: "secret without manager",
			src:  MaterialSource{ServerCertsSecret: "remote/ca"},
			want: "no secret manager available",
		},
		{
			name:    "secret missing",
			src:     MaterialSource{ClientCertSecret: "remote/cert"},
			secrets: mocks.NewMockSecretManager(),
			want:    "secret not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.secrets != nil {
				_, err = LoadMaterial(context.Background(), tt.src, tt.secrets, zap.NewNop())
			} else {
				_, err = LoadMaterial(context.Background(), tt.src, nil, zap.NewNop())
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMaterial_ApplyNil(t *testing.T) {
	cfg := DefaultConfig("https://example.com")
	var m *Material
	m.Apply(cfg)
	assert.Nil(t, cfg.RootCAs)
}
