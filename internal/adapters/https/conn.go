package https

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// connExchanger speaks HTTP/1.1 directly over a fresh TLS connection per hop.
// Header lines are written in exactly the order the transport stores them.
type connExchanger struct{}

func (connExchanger) perform(ctx context.Context, h *handle, req *outbound) (int, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	target, err := url.Parse(req.uri)
	if err != nil {
		return 0, fmt.Errorf("failed to parse destination: %w", err)
	}

	for redirects := 0; ; redirects++ {
		resp, err := roundTripConn(ctx, h, target, req)
		if err != nil {
			return 0, err
		}

		location := resp.Header.Get("Location")
		if !isRedirectStatus(resp.StatusCode) || location == "" {
			err := h.capture(resp.Body)
			resp.Body.Close()
			return resp.StatusCode, err
		}
		resp.Body.Close()

		next, err := target.Parse(location)
		if err != nil {
			return 0, fmt.Errorf("invalid redirect location %q: %w", location, err)
		}
		if err := checkRedirectTarget(next, redirects+1); err != nil {
			return 0, err
		}

		req = req.redirected(resp.StatusCode, next.String())
		target = next
	}
}

// roundTripConn sends one request on its own connection and reads the response head.
// The connection is owned by the handle and closed on release.
func roundTripConn(ctx context.Context, h *handle, target *url.URL, req *outbound) (*http.Response, error) {
	addr := target.Host
	if target.Port() == "" {
		addr = net.JoinHostPort(target.Hostname(), "443")
	}

	conn, err := h.dialTLS(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	w := bufio.NewWriter(conn)
	if err := writeRequest(w, h.headers, target, req); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: req.method})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, nil
}

// writeRequest serializes an HTTP/1.1 request head and body onto w
func writeRequest(w *bufio.Writer, headers *HeaderSet, target *url.URL, req *outbound) error {
	fmt.Fprintf(w, "%s %s HTTP/1.1\r\n", req.method, target.RequestURI())
	for _, line := range headers.Lines() {
		w.WriteString(line)
		w.WriteString("\r\n")
	}
	if req.encoding != "" {
		w.WriteString("Content-Encoding: " + req.encoding + "\r\n")
	}
	if req.body != nil || req.method == http.MethodPost {
		w.WriteString("Content-Length: " + strconv.Itoa(len(req.body)) + "\r\n")
	}
	w.WriteString("\r\n")
	if len(req.body) > 0 {
		w.Write(req.body)
	}
	return w.Flush()
}
