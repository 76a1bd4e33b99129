package wire

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// wireMessage is implemented by every message type this package defines
// (LogLine, Metrics, Empty). Registering a codec against this interface
// lets the generated-style service stubs in service.go call Marshal/
// Unmarshal without depending on proto.Message/protoreflect, which a
// hand-encoded message cannot implement.
type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// protoCodec implements encoding.Codec. It is registered under the name
// grpc-go's own proto codec normally claims ("proto"), which is what the
// generated *_grpc.pb.go boilerplate in service.go expects to find at
// dial/serve time - there is no protoc-generated alternative to defer to
// here, so this codec *is* "proto" for this module.
type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("wire: %T does not implement wireMessage", v)
	}
	return m.Marshal()
}

func (protoCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("wire: %T does not implement wireMessage", v)
	}
	return m.Unmarshal(data)
}

func init() {
	encoding.RegisterCodec(protoCodec{})
}
