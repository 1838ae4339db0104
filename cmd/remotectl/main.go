package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
	"github.com/kevin07696/remote-transport/internal/config"
	"github.com/kevin07696/remote-transport/internal/services/remote"
	pkgerrors "github.com/kevin07696/remote-transport/pkg/errors"
	"github.com/kevin07696/remote-transport/pkg/observability"
	"github.com/kevin07696/remote-transport/pkg/resilience"
	"github.com/kevin07696/remote-transport/pkg/shutdown"
)

func main() {
	var (
		body     = flag.String("body", "", "JSON object to POST; empty sends a GET")
		compress = flag.Bool("compress", false, "gzip the request body (overrides REMOTE_COMPRESS)")
		interval = flag.Duration("interval", 0, "repeat the request on this interval until interrupted")
	)
	flag.Parse()

	os.Exit(run(*body, *compress, *interval))
}

func run(body string, compress bool, interval time.Duration) int {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return int(pkgerrors.CodeConnectivity)
	}
	if compress {
		cfg.Retry.Compress = true
	}

	logger := initLogger(cfg.Logger)
	defer func() { _ = logger.Sync() }()

	params, err := parseBody(body)
	if err != nil {
		logger.Error("Invalid request body", zap.Error(err))
		return int(pkgerrors.CodeConnectivity)
	}

	timeouts, err := timeoutConfig(cfg)
	if err != nil {
		logger.Error("Invalid timeout configuration", zap.Error(err))
		return int(pkgerrors.CodeConnectivity)
	}
	logger.Debug("Timeout hierarchy",
		zap.Duration("command", timeouts.Command),
		zap.Duration("call", timeouts.Call),
		zap.Duration("attempt", timeouts.Attempt),
		zap.Duration("connect", timeouts.Connect),
	)

	if interval == 0 {
		ctx, cancel := timeouts.CommandContext(context.Background())
		defer cancel()
		ctx, stop := shutdown.SignalContext(ctx)
		defer stop()

		helper, _, err := initRemote(ctx, cfg, timeouts, logger)
		if err != nil {
			logger.Error("Failed to initialize remote transport", zap.Error(err))
			return int(pkgerrors.CodeOf(err))
		}
		return send(ctx, helper, timeouts, params, logger)
	}

	return poll(cfg, timeouts, params, interval, logger)
}

// poll repeats the request until SIGINT or SIGTERM, exiting with the status of the last attempt
func poll(cfg *config.Config, timeouts *resilience.TimeoutConfig, params ports.Params, interval time.Duration, logger *zap.Logger) int {
	ctx, stop := shutdown.SignalContext(context.Background())
	defer stop()

	initCtx, cancel := timeouts.CommandContext(ctx)
	helper, request, err := initRemote(initCtx, cfg, timeouts, logger)
	cancel()
	if err != nil {
		logger.Error("Failed to initialize remote transport", zap.Error(err))
		return int(pkgerrors.CodeOf(err))
	}

	manager := shutdown.NewManager(logger, 10*time.Second)

	if cfg.Metrics.Port > 0 {
		hc := observability.NewHealthChecker()
		hc.Register("remote", func(ctx context.Context) error {
			if !helper.Breaker().Allow() {
				return fmt.Errorf("circuit breaker %s for %s", helper.Breaker().State(), request.Destination())
			}
			return nil
		})
		srv := observability.StartMetricsServer(strconv.Itoa(cfg.Metrics.Port), hc, logger)
		manager.Register("metrics-server", func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		})
	}

	poller, status := startPolling(ctx, interval, logger, func(ctx context.Context) int {
		return send(ctx, helper, timeouts, params, logger)
	})
	manager.Register("remote-poller", poller.Shutdown)

	<-poller.Done()
	logger.Info("Shutdown signal received")
	manager.Shutdown()
	return status()
}

// startPolling runs run on every tick. status returns the code of the most
// recent run and may be read while the poller is still going.
func startPolling(ctx context.Context, interval time.Duration, logger *zap.Logger, run func(ctx context.Context) int) (*shutdown.Poller, func() int) {
	var last atomic.Int32
	poller := shutdown.NewPoller(ctx, "remote-request", interval, logger)
	poller.Start(func(ctx context.Context) {
		last.Store(int32(run(ctx)))
	})
	return poller, func() int { return int(last.Load()) }
}

func send(ctx context.Context, helper *remote.Helper, timeouts *resilience.TimeoutConfig, params ports.Params, logger *zap.Logger) int {
	callCtx, cancel := timeouts.CallContext(ctx)
	defer cancel()

	resp, err := helper.Do(callCtx, params)
	if err != nil {
		status := pkgerrors.StatusOf(err)
		logger.Error("Remote request failed",
			zap.Int("code", int(status.Code)),
			zap.String("message", status.Message),
		)
		return int(status.Code)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		logger.Error("Failed to render response", zap.Error(err))
		return int(pkgerrors.CodeConnectivity)
	}
	fmt.Println(string(out))
	return int(pkgerrors.CodeOK)
}

// parseBody returns nil for an empty body so the helper sends a GET
func parseBody(body string) (ports.Params, error) {
	if body == "" {
		return nil, nil
	}
	var params ports.Params
	if err := json.Unmarshal([]byte(body), &params); err != nil {
		return nil, fmt.Errorf("body must be a JSON object: %w", err)
	}
	if params == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return params, nil
}

// initLogger initializes the zap logger
func initLogger(cfg config.LoggerConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	// stdout carries the decoded response
	zapCfg.OutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
