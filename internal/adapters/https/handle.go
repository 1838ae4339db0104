package https

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	pkgerrors "github.com/kevin07696/remote-transport/pkg/errors"
)

// handle is the per-call connection handle. It owns the TLS policy, the
// response sink and every connection opened during one exchange.
// The header set is borrowed from the transport.
type handle struct {
	tlsConfig      *tls.Config
	headers        *HeaderSet
	timeout        time.Duration
	connectTimeout time.Duration
	maxBytes       int64

	// call-local response buffer, written only through write()
	response bytes.Buffer

	mu      sync.Mutex
	conns   []net.Conn
	closers []func()
}

func (t *TLSTransport) newHandle() *handle {
	return &handle{
		tlsConfig:      newTLSConfig(t.config, t.verifyPeer),
		headers:        t.headers,
		timeout:        t.config.Timeout,
		connectTimeout: t.config.ConnectTimeout,
		maxBytes:       t.config.MaxResponseBytes,
	}
}

// write is the body callback. It returns the number of bytes consumed;
// anything short of len(p) aborts the transfer.
func (h *handle) write(p []byte) int {
	if h.maxBytes > 0 {
		room := h.maxBytes - int64(h.response.Len())
		if room < int64(len(p)) {
			if room > 0 {
				h.response.Write(p[:room])
				return int(room)
			}
			return 0
		}
	}
	n, _ := h.response.Write(p)
	return n
}

// capture drains r into the response buffer through write
func (h *handle) capture(r io.Reader) error {
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if consumed := h.write(chunk[:n]); consumed < n {
				return pkgerrors.ErrResponseTooLarge
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// body returns the captured response bytes
func (h *handle) body() []byte {
	return h.response.Bytes()
}

// dialTLS opens a TCP connection and completes the TLS handshake on it.
// Handshake failures are wrapped in handshakeError so they classify as TLS errors.
func (h *handle) dialTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: h.connectTimeout}
	raw, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	cfg := h.tlsConfig.Clone()
	if cfg.ServerName == "" {
		host, _, splitErr := net.SplitHostPort(addr)
		if splitErr != nil {
			host = addr
		}
		cfg.ServerName = host
	}

	conn := tls.Client(raw, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, err
		}
		return nil, &handshakeError{err: err}
	}

	h.track(conn)
	return conn, nil
}

func (h *handle) track(conn net.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns = append(h.conns, conn)
}

// onRelease registers a cleanup that runs when the handle is released
func (h *handle) onRelease(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closers = append(h.closers, fn)
}

// release closes every connection opened by the handle. Safe to call more than once.
func (h *handle) release() {
	h.mu.Lock()
	conns, closers := h.conns, h.closers
	h.conns, h.closers = nil, nil
	h.mu.Unlock()

	for _, fn := range closers {
		fn()
	}
	for _, c := range conns {
		_ = c.Close()
	}
}

// open reports how many connections are still held by the handle
func (h *handle) open() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
