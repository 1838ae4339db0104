package https

import (
	"crypto/tls"
	"crypto/x509"
	"net/url"
	"time"

	pkgerrors "github.com/kevin07696/remote-transport/pkg/errors"
)

// Config contains configuration for a TLS transport bound to one destination
type Config struct {
	// Destination URI. Must start with https://
	Destination string

	// Value of the Host header. Defaults to the destination's host
	TLSHostname string

	// Version reported in the User-Agent header (osquery/<version>)
	Version string

	// Backend selects the exchange implementation (net or conn)
	Backend Backend

	// Overall ceiling for one exchange, redirects included
	Timeout time.Duration

	// Ceiling for establishing the TCP connection of each hop
	ConnectTimeout time.Duration

	// Largest response body accepted. 0 means unlimited
	MaxResponseBytes int64

	// Treat non-2xx final responses as connectivity failures
	RequireSuccessStatus bool

	// Pinned server CA bundle. nil uses the system roots
	RootCAs *x509.CertPool

	// Client certificates presented during the handshake
	Certificates []tls.Certificate
}

// DefaultConfig returns default configuration for a transport to destination
func DefaultConfig(destination string) *Config {
	return &Config{
		Destination:          destination,
		Version:              "5.0.0",
		Backend:              BackendNet,
		Timeout:              30 * time.Second,
		ConnectTimeout:       10 * time.Second,
		MaxResponseBytes:     16 << 20,
		RequireSuccessStatus: true,
	}
}

// Validate checks the configuration and fills derived defaults
func (c *Config) Validate() error {
	if c.Destination == "" {
		return pkgerrors.NewValidationError("destination", "destination URI is required")
	}
	// Destinations with no parseable host are still accepted here; the scheme
	// check rejects them on the first request.
	if c.TLSHostname == "" {
		if u, err := url.Parse(c.Destination); err == nil {
			c.TLSHostname = u.Host
		}
	}
	if c.Version == "" {
		return pkgerrors.NewValidationError("version", "version is required")
	}
	if c.Backend == "" {
		c.Backend = BackendNet
	}
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return pkgerrors.NewValidationError("backend", err.Error())
	}
	if c.Timeout < 0 || c.ConnectTimeout < 0 {
		return pkgerrors.NewValidationError("timeout", "timeouts must not be negative")
	}
	if c.MaxResponseBytes < 0 {
		return pkgerrors.NewValidationError("max_response_bytes", "must not be negative")
	}
	return nil
}
