package grpcclient

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC call content subtype used for worker calls.
//
// The worker wire schema is owned by the store nodes, so the gateway does not
// carry generated stubs for it. Frames are plain JSON objects instead, which
// any worker implementation can produce without sharing code with us.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return CodecName
}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
