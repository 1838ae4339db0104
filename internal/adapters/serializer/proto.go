package serializer

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
)

// ContentTypeProto is sent as Content-Type and Accept by protobuf transports
const ContentTypeProto = "application/x-protobuf"

// Proto encodes params as a google.protobuf.Struct message
type Proto struct {
	marshal proto.MarshalOptions
}

// NewProto creates a protobuf serializer with deterministic output
func NewProto() *Proto {
	return &Proto{marshal: proto.MarshalOptions{Deterministic: true}}
}

func (*Proto) ContentType() string {
	return ContentTypeProto
}

func (p *Proto) Serialize(params ports.Params) ([]byte, error) {
	msg, err := structpb.NewStruct(params)
	if err != nil {
		return nil, codecError("protobuf serialize error: %v", err)
	}
	data, err := p.marshal.Marshal(msg)
	if err != nil {
		return nil, codecError("protobuf serialize error: %v", err)
	}
	return data, nil
}

func (*Proto) Deserialize(data []byte) (ports.Params, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, codecError("protobuf deserialize error: %v", err)
	}
	return ports.Params(msg.AsMap()), nil
}
