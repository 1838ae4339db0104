package ports

// Params is a decoded request or response document
type Params map[string]any

// Serializer encodes outgoing parameters and decodes response bodies.
// ContentType is sent as both Content-Type and Accept on every request.
type Serializer interface {
	ContentType() string
	Serialize(params Params) ([]byte, error)
	Deserialize(data []byte) (Params, error)
}
