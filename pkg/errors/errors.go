package errors

import (
	"errors"
	"fmt"
)

// Code is the numeric outcome of a remote request
type Code int

const (
	// CodeOK means the exchange and decode both succeeded
	CodeOK Code = 0
	// CodeConnectivity covers connectivity, protocol, redirect and serialization failures
	CodeConnectivity Code = 1
	// CodeTLS is reserved for TLS handshake and certificate failures
	CodeTLS Code = 2
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeConnectivity:
		return "connectivity"
	case CodeTLS:
		return "tls"
	default:
		return "unknown"
	}
}

var (
	// ErrInsecureScheme is returned when the destination is not an https URI
	ErrInsecureScheme = errors.New("Cannot create TLS request for non-HTTPS protocol URI")
	// ErrTooManyRedirects is returned when a request exceeds the redirect cap
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrInsecureRedirect is returned when a redirect points at a non-https target
	ErrInsecureRedirect = errors.New("redirect to non-HTTPS protocol URI")
	// ErrResponseTooLarge is returned when the response exceeds the configured size
	ErrResponseTooLarge = errors.New("response body exceeds maximum size")
	// ErrUnexpectedStatus is returned for non-2xx responses when success status is required
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

// Status is the code/message pair handed back to callers
type Status struct {
	Code    Code
	Message string
}

// OK reports whether the status represents success
func (s Status) OK() bool {
	return s.Code == CodeOK
}

func (s Status) String() string {
	if s.OK() {
		return "OK"
	}
	return fmt.Sprintf("%d: %s", s.Code, s.Message)
}

// TransportError represents a failed remote request with its status code
type TransportError struct {
	Code    Code
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Status returns the status carried by the error
func (e *TransportError) Status() Status {
	return Status{Code: e.Code, Message: e.Message}
}

// NewTransportError creates a new transport error
func NewTransportError(code Code, message string, err error) *TransportError {
	return &TransportError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// StatusOf maps an error returned by a transport, request or serializer onto a Status.
// Errors that carry no code are reported as connectivity failures.
func StatusOf(err error) Status {
	if err == nil {
		return Status{Code: CodeOK, Message: "OK"}
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status()
	}
	return Status{Code: CodeConnectivity, Message: err.Error()}
}

// CodeOf is shorthand for StatusOf(err).Code
func CodeOf(err error) Code {
	return StatusOf(err).Code
}

// ValidationError represents configuration validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
