// Package api defines the fin-keeper gRPC contract: message types, the
// Finance service descriptor and a typed client. Messages travel as JSON
// through a registered gRPC codec selected by the "json" content-subtype.
package api

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of fin-keeper messages.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// CallOption selects the JSON codec on the client side.
func CallOption() grpc.CallOption { return grpc.CallContentSubtype(CodecName) }
