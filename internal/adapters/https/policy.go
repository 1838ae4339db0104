package https

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/kevin07696/remote-transport/pkg/errors"
)

const (
	// SecureScheme is the only destination prefix a transport will accept
	SecureScheme = "https://"

	// MaxRedirects is the longest redirect chain a single request may follow
	MaxRedirects = 5

	// MinTLSVersion is the lowest protocol version the handshake may negotiate
	MinTLSVersion = tls.VersionTLS12
)

// isSecureDestination reports whether uri carries the https scheme prefix
func isSecureDestination(uri string) bool {
	return strings.HasPrefix(uri, SecureScheme)
}

// checkRedirectTarget applies the redirect policy to the hops-th redirect
func checkRedirectTarget(target *url.URL, hops int) error {
	if target.Scheme != "https" {
		return fmt.Errorf("%w: %s", pkgerrors.ErrInsecureRedirect, target.Redacted())
	}
	if hops > MaxRedirects {
		return fmt.Errorf("%w: stopped after %d", pkgerrors.ErrTooManyRedirects, MaxRedirects)
	}
	return nil
}

// checkRedirect adapts the redirect policy to http.Client.CheckRedirect.
// via holds every request already sent, so len(via) is the redirect count.
// http.Client drops a custom Host on absolute Locations; every hop carries
// the configured one, as the conn backend does.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if err := checkRedirectTarget(req.URL, len(via)); err != nil {
		return err
	}
	if len(via) > 0 && via[0].Host != "" {
		req.Host = via[0].Host
	}
	return nil
}

// isRedirectStatus reports whether code is a followable redirect
func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// newTLSConfig builds the client TLS configuration every handle uses
func newTLSConfig(cfg *Config, verifyPeer bool) *tls.Config {
	return &tls.Config{
		MinVersion:         MinTLSVersion,
		RootCAs:            cfg.RootCAs,
		Certificates:       cfg.Certificates,
		InsecureSkipVerify: !verifyPeer,
		NextProtos:         []string{"http/1.1"},
	}
}

// handshakeError marks a failure that happened after the TCP connection was
// established, while negotiating TLS
type handshakeError struct {
	err error
}

func (e *handshakeError) Error() string {
	return "TLS handshake failed: " + e.err.Error()
}

func (e *handshakeError) Unwrap() error {
	return e.err
}

// classify maps an exchange failure onto a status code
func classify(err error) pkgerrors.Code {
	var (
		handshake    *handshakeError
		verification *tls.CertificateVerificationError
		unknownCA    x509.UnknownAuthorityError
		hostname     x509.HostnameError
		invalidCert  x509.CertificateInvalidError
		recordHeader tls.RecordHeaderError
		alert        tls.AlertError
	)

	switch {
	case errors.As(err, &handshake),
		errors.As(err, &verification),
		errors.As(err, &unknownCA),
		errors.As(err, &hostname),
		errors.As(err, &invalidCert),
		errors.As(err, &recordHeader),
		errors.As(err, &alert):
		return pkgerrors.CodeTLS
	default:
		return pkgerrors.CodeConnectivity
	}
}
