package https

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
)

// Backend names one member of the closed set of exchange implementations
type Backend string

const (
	// BackendNet runs the exchange through a per-call net/http client
	BackendNet Backend = "net"
	// BackendConn writes the exchange directly onto a per-call TLS connection
	BackendConn Backend = "conn"
)

// ParseBackend validates a backend name from configuration
func ParseBackend(name string) (Backend, error) {
	switch Backend(name) {
	case BackendNet, BackendConn:
		return Backend(name), nil
	case "":
		return BackendNet, nil
	default:
		return "", fmt.Errorf("unknown transport backend %q (want %q or %q)", name, BackendNet, BackendConn)
	}
}

// outbound describes the request of one call
type outbound struct {
	method   string
	uri      string
	body     []byte
	encoding string
}

// redirected returns the request to send after a redirect with the given status.
// 301, 302 and 303 turn a POST into a bodyless GET; 307 and 308 replay it.
func (o *outbound) redirected(status int, uri string) *outbound {
	next := *o
	next.uri = uri
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther:
		if o.method != http.MethodGet && o.method != http.MethodHead {
			next.method = http.MethodGet
			next.body = nil
			next.encoding = ""
		}
	}
	return &next
}

// exchanger performs exactly one logical exchange for a handle, following
// redirects under the handle's policy, and captures the final body through
// the handle's write callback. It returns the final HTTP status code.
type exchanger interface {
	perform(ctx context.Context, h *handle, req *outbound) (int, error)
}

func newExchanger(b Backend) (exchanger, error) {
	switch b {
	case BackendNet, "":
		return netExchanger{}, nil
	case BackendConn:
		return connExchanger{}, nil
	default:
		return nil, fmt.Errorf("unknown transport backend %q", b)
	}
}

// netExchanger builds a dedicated http.Client per call
type netExchanger struct{}

func (netExchanger) perform(ctx context.Context, h *handle, req *outbound) (int, error) {
	transport := &http.Transport{
		Proxy:              nil,
		DialTLSContext:     h.dialTLS,
		DisableKeepAlives:  true,
		DisableCompression: true,
		ForceAttemptHTTP2:  false,
		MaxConnsPerHost:    1,
	}
	h.onRelease(transport.CloseIdleConnections)

	client := &http.Client{
		Transport:     transport,
		CheckRedirect: checkRedirect,
		Timeout:       h.timeout,
	}

	var body *bytes.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := newHTTPRequest(ctx, req.method, req.uri, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	h.headers.apply(httpReq)
	if req.encoding != "" {
		httpReq.Header.Set("Content-Encoding", req.encoding)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := h.capture(resp.Body); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

// newHTTPRequest avoids handing net/http a typed-nil body
func newHTTPRequest(ctx context.Context, method, uri string, body *bytes.Reader) (*http.Request, error) {
	if body == nil {
		return http.NewRequestWithContext(ctx, method, uri, nil)
	}
	return http.NewRequestWithContext(ctx, method, uri, body)
}
