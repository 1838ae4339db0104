package ports

import "context"

// Transport sends a request to a single configured destination and decodes the response.
// Implementations must reject non-https destinations before any network activity.
//
// A nil error means success. Failures carry a status code (see pkg/errors):
//   - 1 for connectivity, protocol and serialization problems
//   - 2 for TLS handshake or certificate problems
type Transport interface {
	// SendRequest issues a GET-shaped exchange with no body
	SendRequest(ctx context.Context) (Params, error)

	// SendRequestWithBody issues a POST-shaped exchange carrying params as the payload.
	// When compress is set the payload is gzip-encoded before sending.
	SendRequestWithBody(ctx context.Context, params []byte, compress bool) (Params, error)

	// Destination returns the URI this transport is bound to
	Destination() string
}
