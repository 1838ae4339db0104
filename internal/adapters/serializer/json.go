package serializer

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
	"github.com/kevin07696/remote-transport/pkg/encoding"
)

// ContentTypeJSON is sent as Content-Type and Accept by JSON transports
const ContentTypeJSON = "application/json"

var errNotObject = errors.New("response is not a JSON object")

// JSON encodes params as a JSON object
type JSON struct{}

// NewJSON creates a JSON serializer
func NewJSON() *JSON {
	return &JSON{}
}

func (*JSON) ContentType() string {
	return ContentTypeJSON
}

func (*JSON) Serialize(params ports.Params) ([]byte, error) {
	if params == nil {
		params = ports.Params{}
	}
	data, err := encoding.EncodeJSON(params)
	if err != nil {
		return nil, codecError("JSON serialize error: %v", err)
	}
	return bytes.TrimRight(data, "\n"), nil
}

func (*JSON) Deserialize(data []byte) (ports.Params, error) {
	var params ports.Params
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, codecError("JSON deserialize error: %v", err)
	}
	if params == nil {
		return nil, codecError("JSON deserialize error: %v", errNotObject)
	}
	return params, nil
}
