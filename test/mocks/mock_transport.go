package mocks

import (
	"context"
	"sync"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
)

// TransportCall is one captured call on MockTransport
type TransportCall struct {
	Method   string
	Body     []byte
	Compress bool
}

// TransportResult is one scripted response
type TransportResult struct {
	Params ports.Params
	Err    error
}

// MockTransport is a mock implementation of ports.Transport for testing.
// Scripted results are consumed in order; the last one repeats.
type MockTransport struct {
	mu sync.Mutex

	destination string
	results     []TransportResult
	responder   func(ctx context.Context, call TransportCall) (ports.Params, error)

	// Call tracking
	Calls []TransportCall
}

var _ ports.Transport = (*MockTransport)(nil)

// NewMockTransport creates a mock bound to destination that returns an empty
// Params until results are scripted
func NewMockTransport(destination string) *MockTransport {
	return &MockTransport{destination: destination}
}

// QueueResult appends a result to the script
func (m *MockTransport) QueueResult(params ports.Params, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, TransportResult{Params: params, Err: err})
}

// SetResponder answers every call with fn instead of the script. fn runs
// outside the mock's lock, so calls may overlap.
func (m *MockTransport) SetResponder(fn func(ctx context.Context, call TransportCall) (ports.Params, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// SendRequest records a GET-shaped call
func (m *MockTransport) SendRequest(ctx context.Context) (ports.Params, error) {
	return m.record(ctx, TransportCall{Method: "GET"})
}

// SendRequestWithBody records a POST-shaped call
func (m *MockTransport) SendRequestWithBody(ctx context.Context, params []byte, compress bool) (ports.Params, error) {
	body := make([]byte, len(params))
	copy(body, params)
	return m.record(ctx, TransportCall{Method: "POST", Body: body, Compress: compress})
}

// Destination returns the configured destination
func (m *MockTransport) Destination() string {
	return m.destination
}

// CallCount returns the number of calls made so far
func (m *MockTransport) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent call, or nil
func (m *MockTransport) LastCall() *TransportCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	call := m.Calls[len(m.Calls)-1]
	return &call
}

// Reset clears captured calls and scripted results
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.results = nil
	m.responder = nil
}

func (m *MockTransport) record(ctx context.Context, call TransportCall) (ports.Params, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	if responder := m.responder; responder != nil {
		m.mu.Unlock()
		return responder(ctx, call)
	}
	defer m.mu.Unlock()

	if len(m.results) == 0 {
		return ports.Params{}, nil
	}

	idx := len(m.Calls) - 1
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	res := m.results[idx]
	return res.Params, res.Err
}
