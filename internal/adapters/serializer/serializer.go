package serializer

import (
	"fmt"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
	pkgerrors "github.com/kevin07696/remote-transport/pkg/errors"
)

// Serializer names from configuration
const (
	NameJSON  = "json"
	NameProto = "proto"
)

// New returns the serializer registered under name
func New(name string) (ports.Serializer, error) {
	switch name {
	case NameJSON, "":
		return NewJSON(), nil
	case NameProto:
		return NewProto(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q", name)
	}
}

// codecError reports encode and decode failures with the generic failure code
func codecError(format string, err error) error {
	return pkgerrors.NewTransportError(pkgerrors.CodeConnectivity, fmt.Sprintf(format, err), err)
}
