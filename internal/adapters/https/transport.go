package https

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
	"github.com/kevin07696/remote-transport/pkg/encoding"
	pkgerrors "github.com/kevin07696/remote-transport/pkg/errors"
	"github.com/kevin07696/remote-transport/pkg/observability"
)

// TLSTransport implements ports.Transport over HTTPS only.
//
// Every call builds its own connection handle with the full security policy
// (peer and host verification, TLS 1.2 floor, https-only redirects capped at
// MaxRedirects), performs one exchange, and releases the handle before
// returning. Responses are buffered per call, so one instance may be shared
// between goroutines.
type TLSTransport struct {
	config     *Config
	serializer ports.Serializer
	logger     *zap.Logger
	headers    *HeaderSet
	exchanger  exchanger

	// Only cleared by test builds
	verifyPeer bool
}

var _ ports.Transport = (*TLSTransport)(nil)

// NewTLSTransport creates a transport bound to cfg.Destination
func NewTLSTransport(cfg *Config, serializer ports.Serializer, logger *zap.Logger) (*TLSTransport, error) {
	if cfg == nil {
		return nil, pkgerrors.NewValidationError("config", "config is required")
	}
	if serializer == nil {
		return nil, pkgerrors.NewValidationError("serializer", "serializer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ex, err := newExchanger(cfg.Backend)
	if err != nil {
		return nil, err
	}

	return &TLSTransport{
		config:     cfg,
		serializer: serializer,
		logger:     logger.With(zap.String("backend", string(cfg.Backend))),
		headers:    newHeaderSet(serializer.ContentType(), cfg.TLSHostname, cfg.Version),
		exchanger:  ex,
		verifyPeer: true,
	}, nil
}

// New creates the configured Transport variant
func New(cfg *Config, serializer ports.Serializer, logger *zap.Logger) (ports.Transport, error) {
	t, err := NewTLSTransport(cfg, serializer, logger)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Destination returns the URI this transport is bound to
func (t *TLSTransport) Destination() string {
	return t.config.Destination
}

// Headers returns the fixed header set sent on every request
func (t *TLSTransport) Headers() *HeaderSet {
	return t.headers
}

// SendRequest sends a GET request to the destination and decodes the response
func (t *TLSTransport) SendRequest(ctx context.Context) (ports.Params, error) {
	return t.send(ctx, &outbound{
		method: http.MethodGet,
		uri:    t.config.Destination,
	})
}

// SendRequestWithBody POSTs params to the destination and decodes the response
func (t *TLSTransport) SendRequestWithBody(ctx context.Context, params []byte, compress bool) (ports.Params, error) {
	req := &outbound{
		method: http.MethodPost,
		uri:    t.config.Destination,
		body:   params,
	}
	if req.body == nil {
		req.body = []byte{}
	}

	if compress && isSecureDestination(t.config.Destination) {
		compressed, err := encoding.Gzip(params)
		if err != nil {
			return nil, pkgerrors.NewTransportError(pkgerrors.CodeConnectivity,
				fmt.Sprintf("Could not compress request body: %v", err), err)
		}
		req.body = compressed
		req.encoding = "gzip"
	}

	return t.send(ctx, req)
}

func (t *TLSTransport) send(ctx context.Context, req *outbound) (ports.Params, error) {
	if !isSecureDestination(req.uri) {
		return nil, pkgerrors.NewTransportError(pkgerrors.CodeConnectivity,
			pkgerrors.ErrInsecureScheme.Error(), pkgerrors.ErrInsecureScheme)
	}

	h := t.newHandle()
	defer h.release()

	t.logger.Debug("TLS/HTTPS "+req.method+" request",
		zap.String("uri", sanitizeURI(req.uri)),
		zap.Int("body_length", len(req.body)),
	)

	done := observability.TransportStarted(string(t.config.Backend), req.method)
	startTime := time.Now()

	statusCode, err := t.exchanger.perform(ctx, h, req)
	if err == nil && t.config.RequireSuccessStatus && (statusCode < 200 || statusCode > 299) {
		err = fmt.Errorf("%w: %d %s", pkgerrors.ErrUnexpectedStatus, statusCode, http.StatusText(statusCode))
	}
	if err != nil {
		code := classify(err)
		done(int(code), 0)

		t.logger.Warn("TLS/HTTPS request failed",
			zap.String("method", req.method),
			zap.String("uri", sanitizeURI(req.uri)),
			zap.Int("code", int(code)),
			zap.Duration("elapsed", time.Since(startTime)),
			zap.Error(err),
		)
		return nil, pkgerrors.NewTransportError(code, "Request error: "+err.Error(), err)
	}

	body := h.body()
	t.logger.Debug("TLS/HTTPS response received",
		zap.Int("status_code", statusCode),
		zap.Int("body_length", len(body)),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	params, err := t.serializer.Deserialize(body)
	done(int(pkgerrors.CodeOf(err)), len(body))
	if err != nil {
		return nil, err
	}
	return params, nil
}
