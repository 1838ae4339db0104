package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Remote  RemoteConfig
	Retry   RetryConfig
	Secrets SecretsConfig
	Logger  LoggerConfig
	Metrics MetricsConfig
}

// RemoteConfig holds the destination and TLS transport settings
type RemoteConfig struct {
	Destination          string        // Full https:// URI of the endpoint
	TLSHostname          string        // Host header; derived from Destination when empty
	Version              string        // Sent as User-Agent: osquery/<version>
	Backend              string        // net or conn
	Serializer           string        // json or proto
	Timeout              time.Duration // Whole exchange
	ConnectTimeout       time.Duration // Dial + TLS handshake
	MaxResponseBytes     int64
	RequireSuccessStatus bool

	// Pinned server CA bundle and client certificate material
	ServerCertsFile   string
	ServerCertsSecret string
	ClientCertFile    string
	ClientKeyFile     string
	ClientCertSecret  string
	ClientKeySecret   string

	// Optional secret version pins; empty reads the current version
	ServerCertsSecretVersion string
	ClientCertSecretVersion  string
	ClientKeySecretVersion   string
}

// RetryConfig holds the request helper policy
type RetryConfig struct {
	MaxAttempts       int
	Backoff           string        // linear or exponential
	RetryDelay        time.Duration // Linear step, or the exponential base delay
	RequestsPerSecond float64       // 0 disables pacing
	CallTimeout       time.Duration // All attempts of one request; 0 derives it from the retry budget
	BreakerFailures   int
	BreakerTimeout    time.Duration
	Compress          bool
}

// SecretsConfig selects where TLS material secrets are read from
type SecretsConfig struct {
	Provider  string // "", local, aws or vault
	LocalPath string
	CacheTTL  time.Duration

	AWSRegion   string
	AWSProfile  string
	AWSEndpoint string

	VaultAddress    string
	VaultAuthMethod string // token or approle
	VaultToken      string
	VaultRoleID     string
	VaultSecretID   string
	VaultNamespace  string
	VaultMountPath  string
	VaultKVVersion  string
	VaultPEMField   string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Port int // 0 disables the metrics server
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Remote: RemoteConfig{
			Destination:          getEnv("REMOTE_URI", ""),
			TLSHostname:          getEnv("TLS_HOSTNAME", ""),
			Version:              getEnv("REMOTE_VERSION", "5.0.0"),
			Backend:              getEnv("TRANSPORT_BACKEND", "net"),
			Serializer:           getEnv("REMOTE_SERIALIZER", "json"),
			Timeout:              getEnvAsDuration("REMOTE_TIMEOUT", 30*time.Second),
			ConnectTimeout:       getEnvAsDuration("REMOTE_CONNECT_TIMEOUT", 10*time.Second),
			MaxResponseBytes:     int64(getEnvAsInt("REMOTE_MAX_RESPONSE_BYTES", 16<<20)),
			RequireSuccessStatus: getEnvAsBool("REMOTE_REQUIRE_SUCCESS_STATUS", true),
			ServerCertsFile:      getEnv("TLS_SERVER_CERTS", ""),
			ServerCertsSecret:    getEnv("TLS_SERVER_CERTS_SECRET", ""),
			ClientCertFile:       getEnv("TLS_CLIENT_CERT", ""),
			ClientKeyFile:        getEnv("TLS_CLIENT_KEY", ""),
			ClientCertSecret:     getEnv("TLS_CLIENT_CERT_SECRET", ""),
			ClientKeySecret:      getEnv("TLS_CLIENT_KEY_SECRET", ""),

			ServerCertsSecretVersion: getEnv("TLS_SERVER_CERTS_SECRET_VERSION", ""),
			ClientCertSecretVersion:  getEnv("TLS_CLIENT_CERT_SECRET_VERSION", ""),
			ClientKeySecretVersion:   getEnv("TLS_CLIENT_KEY_SECRET_VERSION", ""),
		},
		Retry: RetryConfig{
			MaxAttempts:       getEnvAsInt("REMOTE_MAX_ATTEMPTS", 3),
			Backoff:           strings.ToLower(getEnv("REMOTE_BACKOFF", "linear")),
			RetryDelay:        getEnvAsDuration("REMOTE_RETRY_DELAY", time.Second),
			RequestsPerSecond: getEnvAsFloat("REMOTE_REQUESTS_PER_SECOND", 0),
			CallTimeout:       getEnvAsDuration("REMOTE_CALL_TIMEOUT", 0),
			BreakerFailures:   getEnvAsInt("REMOTE_BREAKER_FAILURES", 5),
			BreakerTimeout:    getEnvAsDuration("REMOTE_BREAKER_TIMEOUT", 30*time.Second),
			Compress:          getEnvAsBool("REMOTE_COMPRESS", false),
		},
		Secrets: SecretsConfig{
			Provider:        strings.ToLower(getEnv("SECRETS_PROVIDER", "")),
			LocalPath:       getEnv("SECRETS_LOCAL_PATH", "./secrets"),
			CacheTTL:        getEnvAsDuration("SECRETS_CACHE_TTL", 5*time.Minute),
			AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
			AWSProfile:      getEnv("AWS_PROFILE", ""),
			AWSEndpoint:     getEnv("AWS_SECRETS_ENDPOINT", ""),
			VaultAddress:    getEnv("VAULT_ADDR", ""),
			VaultAuthMethod: getEnv("VAULT_AUTH_METHOD", "token"),
			VaultToken:      getEnv("VAULT_TOKEN", ""),
			VaultRoleID:     getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID:   getEnv("VAULT_SECRET_ID", ""),
			VaultNamespace:  getEnv("VAULT_NAMESPACE", ""),
			VaultMountPath:  getEnv("VAULT_MOUNT_PATH", "secret"),
			VaultKVVersion:  getEnv("VAULT_KV_VERSION", "v2"),
			VaultPEMField:   getEnv("VAULT_PEM_FIELD", "pem"),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Metrics: MetricsConfig{
			Port: getEnvAsInt("METRICS_PORT", 0),
		},
	}

	// Validate required fields
	if cfg.Remote.Destination == "" {
		return nil, fmt.Errorf("REMOTE_URI is required")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("REMOTE_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.Retry.Backoff != "linear" && cfg.Retry.Backoff != "exponential" {
		return nil, fmt.Errorf("REMOTE_BACKOFF must be linear or exponential")
	}
	switch cfg.Secrets.Provider {
	case "", "local", "aws", "vault":
	default:
		return nil, fmt.Errorf("SECRETS_PROVIDER must be one of local, aws, vault")
	}
	if cfg.Secrets.Provider == "vault" && cfg.Secrets.VaultAddress == "" {
		return nil, fmt.Errorf("VAULT_ADDR is required for the vault secrets provider")
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("30s") or whole seconds ("30")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
