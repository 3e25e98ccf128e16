// Package jsoncodec is the single JSON codec for cached values and HTTP
// bodies. It uses sonic in std-compatible mode so the bytes written to the
// cache match what encoding/json would produce.
package jsoncodec

import "github.com/bytedance/sonic"

var api = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// Decode unmarshals data into a fresh T.
func Decode[T any](data []byte) (T, error) {
	var out T
	err := api.Unmarshal(data, &out)
	return out, err
}
