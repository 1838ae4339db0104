package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
	pkgerrors "github.com/kevin07696/remote-transport/pkg/errors"
	"github.com/kevin07696/remote-transport/pkg/observability"
	"github.com/kevin07696/remote-transport/pkg/resilience"
)

// HelperConfig is the retry policy applied around a Request
type HelperConfig struct {
	// MaxAttempts is the total number of attempts per logical request
	MaxAttempts int
	// Backoff is consulted between attempts with the 0-indexed retry number
	Backoff resilience.BackoffStrategy
	// RequestsPerSecond paces attempts; 0 disables pacing
	RequestsPerSecond float64
	// Breaker guards the destination across logical requests
	Breaker resilience.CircuitBreakerConfig
	// Compress gzips request bodies
	Compress bool
	// Timeouts bounds each attempt with its Attempt layer and must cover
	// MaxAttempts with Backoff; nil leaves attempts bounded by the transport only
	Timeouts *resilience.TimeoutConfig
}

// DefaultHelperConfig retries 3 times, waiting 1s then 2s
func DefaultHelperConfig() HelperConfig {
	return HelperConfig{
		MaxAttempts: 3,
		Backoff:     &resilience.LinearBackoff{Step: time.Second},
		Breaker:     resilience.DefaultCircuitBreakerConfig(),
	}
}

// Helper runs a Request under a retry policy. The transport itself never
// retries; everything here is owned by the caller.
type Helper struct {
	request *Request
	config  HelperConfig
	logger  *zap.Logger

	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	host    string

	sleep func(ctx context.Context, d time.Duration) error
}

// NewHelper creates a helper for request
func NewHelper(request *Request, cfg HelperConfig, logger *zap.Logger) (*Helper, error) {
	if request == nil {
		return nil, pkgerrors.NewValidationError("request", "request is required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, pkgerrors.NewValidationError("max_attempts", "must be at least 1")
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, pkgerrors.NewValidationError("requests_per_second", "must not be negative")
	}
	if cfg.Backoff == nil {
		cfg.Backoff = &resilience.FixedBackoff{Delay: 0}
	}
	if cfg.Timeouts != nil {
		if err := cfg.Timeouts.ValidateRetries(cfg.MaxAttempts, cfg.Backoff); err != nil {
			return nil, pkgerrors.NewValidationError("timeouts", err.Error())
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Helper{
		request: request,
		config:  cfg,
		logger:  logger,
		host:    destinationHost(request.Destination()),
		sleep:   sleepContext,
	}

	if cfg.RequestsPerSecond > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	breakerCfg := cfg.Breaker
	userFilter := breakerCfg.IsFailure
	breakerCfg.IsFailure = func(err error) bool {
		// Misconfiguration and caller cancellation say nothing about the remote
		if errors.Is(err, pkgerrors.ErrInsecureScheme) || errors.Is(err, context.Canceled) {
			return false
		}
		if userFilter != nil {
			return userFilter(err)
		}
		return true
	}
	userHook := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		observability.SetCircuitBreakerState(h.host, int(to))
		h.logger.Warn("Circuit breaker state changed",
			zap.String("host", h.host),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		if userHook != nil {
			userHook(from, to)
		}
	}
	h.breaker = resilience.NewCircuitBreaker(breakerCfg)

	return h, nil
}

// Breaker exposes the circuit breaker guarding the destination
func (h *Helper) Breaker() *resilience.CircuitBreaker {
	return h.breaker
}

// Do performs one logical request. A nil params sends no body.
func (h *Helper) Do(ctx context.Context, params ports.Params) (ports.Params, error) {
	requestID := uuid.NewString()
	logger := h.logger.With(
		zap.String("request_id", requestID),
		zap.String("host", h.host),
	)

	var response ports.Params
	err := h.breaker.Call(func() error {
		var lastErr error
		for attempt := 0; attempt < h.config.MaxAttempts; attempt++ {
			if attempt > 0 {
				delay := h.config.Backoff.NextDelay(attempt - 1)
				logger.Info("Retrying remote request",
					zap.Int("attempt", attempt+1),
					zap.Int("max_attempts", h.config.MaxAttempts),
					zap.Duration("backoff_delay", delay),
				)
				if err := h.sleep(ctx, delay); err != nil {
					return fmt.Errorf("retry cancelled: %w", err)
				}
			}

			if h.limiter != nil {
				if err := h.limiter.Wait(ctx); err != nil {
					return fmt.Errorf("rate limit wait: %w", err)
				}
			}

			startTime := time.Now()
			resp, err := h.attempt(ctx, params)
			if err == nil {
				response = resp
				observability.RecordRequestAttempt("success")
				logger.Debug("Remote request succeeded",
					zap.Int("attempt", attempt+1),
					zap.Duration("elapsed", time.Since(startTime)),
				)
				return nil
			}

			lastErr = err
			if !isRetryable(ctx, err) {
				observability.RecordRequestAttempt("failed")
				logger.Warn("Remote request failed with non-retryable error",
					zap.Int("attempt", attempt+1),
					zap.Int("code", int(pkgerrors.CodeOf(err))),
					zap.Error(err),
				)
				return err
			}

			if attempt < h.config.MaxAttempts-1 {
				observability.RecordRequestAttempt("retry")
			} else {
				observability.RecordRequestAttempt("failed")
			}
			logger.Warn("Remote request attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Int("code", int(pkgerrors.CodeOf(err))),
				zap.Duration("elapsed", time.Since(startTime)),
				zap.Error(err),
			)
		}
		return lastErr
	})

	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			observability.RecordRequestAttempt("rejected")
			logger.Warn("Circuit breaker rejected remote request",
				zap.String("circuit_state", h.breaker.State().String()),
			)
			return nil, pkgerrors.NewTransportError(pkgerrors.CodeConnectivity,
				"Request error: "+err.Error(), err)
		}
		return nil, err
	}

	return response, nil
}

func (h *Helper) attempt(ctx context.Context, params ports.Params) (ports.Params, error) {
	if h.config.Timeouts != nil {
		var cancel context.CancelFunc
		ctx, cancel = h.config.Timeouts.AttemptContext(ctx)
		defer cancel()
	}
	if params == nil {
		return h.request.Call(ctx)
	}
	return h.request.CallWithParams(ctx, params, h.config.Compress)
}

// isRetryable reports whether another attempt could succeed. TLS failures
// and insecure destinations fail the same way every time. ctx is the call
// context: a deadline hit while it is still live belongs to the attempt.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, pkgerrors.ErrInsecureScheme) {
		return false
	}
	var validationErr *pkgerrors.ValidationError
	if errors.As(err, &validationErr) {
		return false
	}
	return pkgerrors.CodeOf(err) != pkgerrors.CodeTLS
}

func destinationHost(dest string) string {
	u, err := url.Parse(dest)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
