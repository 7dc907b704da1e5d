package codec

import "encoding/json"

// JSON is the default codec. Numbers inside untyped values decode as float64,
// objects as map[string]any.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
