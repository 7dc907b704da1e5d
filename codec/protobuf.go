package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/stalecache/backend"
)

// Protobuf encodes envelopes as a google.protobuf.Struct with the fields
// "b" and "d". Data must be JSON-like: nil, bool, numbers, string, []byte,
// []any or map[string]any. Numbers come back as float64.
type Protobuf struct{}

var _ Envelope = Protobuf{}

func (Protobuf) Encode(env backend.Envelope) ([]byte, error) {
	d, err := structpb.NewValue(env.Data)
	if err != nil {
		return nil, fmt.Errorf("codec: protobuf value: %w", err)
	}
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		"b": structpb.NewNumberValue(float64(env.FreshUntil)),
		"d": d,
	}}
	return proto.Marshal(s)
}

func (Protobuf) Decode(b []byte) (backend.Envelope, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return backend.Envelope{}, err
	}
	env := backend.Envelope{
		FreshUntil: int64(s.GetFields()["b"].GetNumberValue()),
	}
	if d, ok := s.GetFields()["d"]; ok {
		env.Data = d.AsInterface()
	}
	return env, nil
}
