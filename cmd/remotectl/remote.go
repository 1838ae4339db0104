package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/kevin07696/remote-transport/internal/adapters/https"
	"github.com/kevin07696/remote-transport/internal/adapters/secrets"
	"github.com/kevin07696/remote-transport/internal/adapters/serializer"
	"github.com/kevin07696/remote-transport/internal/config"
	"github.com/kevin07696/remote-transport/internal/services/remote"
	"github.com/kevin07696/remote-transport/pkg/resilience"
)

// initRemote wires secrets, TLS material, the transport and the request helper
func initRemote(ctx context.Context, cfg *config.Config, timeouts *resilience.TimeoutConfig, logger *zap.Logger) (*remote.Helper, *remote.Request, error) {
	sm, err := secrets.New(ctx, secretsConfig(cfg.Secrets), logger)
	if err != nil {
		return nil, nil, err
	}

	material, err := https.LoadMaterial(ctx, materialSource(cfg.Remote), sm, logger)
	if err != nil {
		return nil, nil, err
	}

	transportCfg, err := transportConfig(cfg.Remote, timeouts)
	if err != nil {
		return nil, nil, err
	}
	material.Apply(transportCfg)

	codec, err := serializer.New(cfg.Remote.Serializer)
	if err != nil {
		return nil, nil, err
	}

	transport, err := https.New(transportCfg, codec, logger)
	if err != nil {
		return nil, nil, err
	}

	request, err := remote.NewRequest(transport, codec, logger)
	if err != nil {
		return nil, nil, err
	}

	helperCfg := helperConfig(cfg.Retry)
	helperCfg.Timeouts = timeouts
	helper, err := remote.NewHelper(request, helperCfg, logger)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Remote transport initialized",
		zap.String("backend", string(transportCfg.Backend)),
		zap.String("serializer", cfg.Remote.Serializer),
		zap.String("secrets_provider", cfg.Secrets.Provider),
	)
	return helper, request, nil
}

func secretsConfig(cfg config.SecretsConfig) secrets.Config {
	out := secrets.Config{
		Provider:  secrets.Provider(cfg.Provider),
		LocalPath: cfg.LocalPath,
	}

	switch out.Provider {
	case secrets.ProviderAWS:
		aws := secrets.DefaultAWSSecretsManagerConfig(cfg.AWSRegion)
		aws.Profile = cfg.AWSProfile
		aws.Endpoint = cfg.AWSEndpoint
		aws.CacheTTL = cfg.CacheTTL
		aws.EnableCache = cfg.CacheTTL > 0
		out.AWS = aws
	case secrets.ProviderVault:
		vault := secrets.DefaultVaultConfig(cfg.VaultAddress)
		vault.AuthMethod = cfg.VaultAuthMethod
		vault.Token = cfg.VaultToken
		vault.RoleID = cfg.VaultRoleID
		vault.SecretID = cfg.VaultSecretID
		vault.Namespace = cfg.VaultNamespace
		vault.MountPath = cfg.VaultMountPath
		vault.KVVersion = cfg.VaultKVVersion
		vault.PEMField = cfg.VaultPEMField
		vault.CacheTTL = cfg.CacheTTL
		vault.EnableCache = cfg.CacheTTL > 0
		out.Vault = vault
	}
	return out
}

func materialSource(cfg config.RemoteConfig) https.MaterialSource {
	return https.MaterialSource{
		ServerCertsFile:   cfg.ServerCertsFile,
		ServerCertsSecret: cfg.ServerCertsSecret,
		ClientCertFile:    cfg.ClientCertFile,
		ClientKeyFile:     cfg.ClientKeyFile,
		ClientCertSecret:  cfg.ClientCertSecret,
		ClientKeySecret:   cfg.ClientKeySecret,

		ServerCertsSecretVersion: cfg.ServerCertsSecretVersion,
		ClientCertSecretVersion:  cfg.ClientCertSecretVersion,
		ClientKeySecretVersion:   cfg.ClientKeySecretVersion,
	}
}

// transportConfig takes the exchange ceilings from the attempt and connect layers
func transportConfig(cfg config.RemoteConfig, timeouts *resilience.TimeoutConfig) (*https.Config, error) {
	backend, err := https.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	out := https.DefaultConfig(cfg.Destination)
	out.TLSHostname = cfg.TLSHostname
	out.Backend = backend
	out.Timeout = timeouts.Attempt
	out.ConnectTimeout = timeouts.Connect
	out.MaxResponseBytes = cfg.MaxResponseBytes
	out.RequireSuccessStatus = cfg.RequireSuccessStatus
	if cfg.Version != "" {
		out.Version = cfg.Version
	}
	return out, nil
}

func helperConfig(cfg config.RetryConfig) remote.HelperConfig {
	out := remote.DefaultHelperConfig()
	out.MaxAttempts = cfg.MaxAttempts
	out.Backoff = &resilience.LinearBackoff{Step: cfg.RetryDelay}
	if cfg.Backoff == "exponential" {
		eb := resilience.DefaultExponentialBackoff()
		if cfg.RetryDelay > 0 {
			eb.BaseDelay = cfg.RetryDelay
		}
		out.Backoff = eb
	}
	out.RequestsPerSecond = cfg.RequestsPerSecond
	out.Compress = cfg.Compress
	if cfg.BreakerFailures > 0 {
		out.Breaker.MaxFailures = uint32(cfg.BreakerFailures)
	}
	if cfg.BreakerTimeout > 0 {
		out.Breaker.Timeout = cfg.BreakerTimeout
	}
	return out
}

// timeoutConfig builds command > call > attempt > connect from the remote
// and retry settings. REMOTE_CALL_TIMEOUT overrides the derived call budget
// but must still cover every attempt and backoff wait.
func timeoutConfig(cfg *config.Config) (*resilience.TimeoutConfig, error) {
	retry := helperConfig(cfg.Retry)
	tc := resilience.NewTimeoutConfig(cfg.Remote.Timeout, cfg.Remote.ConnectTimeout, retry.MaxAttempts, retry.Backoff)
	if cfg.Retry.CallTimeout > 0 {
		headroom := tc.Command - tc.Call
		tc.Call = cfg.Retry.CallTimeout
		tc.Command = tc.Call + headroom
	}
	if err := tc.ValidateRetries(retry.MaxAttempts, retry.Backoff); err != nil {
		return nil, err
	}
	return tc, nil
}
