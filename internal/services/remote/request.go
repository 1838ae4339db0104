package remote

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
	pkgerrors "github.com/kevin07696/remote-transport/pkg/errors"
)

// Request binds a transport to the serializer that encodes its parameters.
// The decoded params of the last successful call are kept for Response.
type Request struct {
	transport  ports.Transport
	serializer ports.Serializer
	logger     *zap.Logger

	mu       sync.RWMutex
	response ports.Params
}

// NewRequest creates a request against transport's destination
func NewRequest(transport ports.Transport, serializer ports.Serializer, logger *zap.Logger) (*Request, error) {
	if transport == nil {
		return nil, pkgerrors.NewValidationError("transport", "transport is required")
	}
	if serializer == nil {
		return nil, pkgerrors.NewValidationError("serializer", "serializer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Request{
		transport:  transport,
		serializer: serializer,
		logger:     logger,
	}, nil
}

// Destination returns the URI the underlying transport is bound to
func (r *Request) Destination() string {
	return r.transport.Destination()
}

// Call sends a request with no body and returns the decoded response
func (r *Request) Call(ctx context.Context) (ports.Params, error) {
	params, err := r.transport.SendRequest(ctx)
	return r.store(params, err)
}

// CallWithParams serializes params and sends them as the request body
func (r *Request) CallWithParams(ctx context.Context, params ports.Params, compress bool) (ports.Params, error) {
	body, err := r.serializer.Serialize(params)
	if err != nil {
		r.logger.Warn("Could not serialize request parameters", zap.Error(err))
		return nil, err
	}

	resp, err := r.transport.SendRequestWithBody(ctx, body, compress)
	return r.store(resp, err)
}

// Response returns the params decoded from the last successful call on this
// instance. Concurrent callers should use the value returned by Call instead.
func (r *Request) Response() ports.Params {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.response
}

func (r *Request) store(params ports.Params, err error) (ports.Params, error) {
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.response = params
	r.mu.Unlock()
	return params, nil
}
