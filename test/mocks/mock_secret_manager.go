package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
)

// MockSecretManager is an in-memory ports.SecretManagerAdapter for testing
type MockSecretManager struct {
	mu       sync.Mutex
	secrets  map[string]*ports.Secret
	versions map[string]map[string]*ports.Secret

	GetCalls     []string
	VersionCalls []string // "path@version"
}

var _ ports.SecretManagerAdapter = (*MockSecretManager)(nil)

// NewMockSecretManager creates an empty mock secret manager
func NewMockSecretManager() *MockSecretManager {
	return &MockSecretManager{
		secrets:  make(map[string]*ports.Secret),
		versions: make(map[string]map[string]*ports.Secret),
	}
}

// SetSecret stores value at path as the current version "1"
func (m *MockSecretManager) SetSecret(path, value string) {
	m.SetSecretVersion(path, "1", value)
}

// SetSecretVersion stores value as version of path and makes it current
func (m *MockSecretManager) SetSecretVersion(path, version, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	secret := &ports.Secret{Value: value, Version: version}
	if m.versions[path] == nil {
		m.versions[path] = make(map[string]*ports.Secret)
	}
	m.versions[path][version] = secret
	m.secrets[path] = secret
}

// GetSecret returns the current secret or an error if it is missing
func (m *MockSecretManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, path)
	secret, ok := m.secrets[path]
	if !ok {
		return nil, fmt.Errorf("secret not found: %s", path)
	}
	return secret, nil
}

// GetSecretVersion returns a stored version of path
func (m *MockSecretManager) GetSecretVersion(ctx context.Context, path string, version string) (*ports.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.VersionCalls = append(m.VersionCalls, path+"@"+version)
	secret, ok := m.versions[path][version]
	if !ok {
		return nil, fmt.Errorf("secret %s has no version %s", path, version)
	}
	return secret, nil
}
