// Package value holds small helpers for working with the untyped
// JSON values ("params") that travel through a composition.
package value

import (
	"encoding/json"
	"math/rand"
)

// alphabet is used by Gensym.
var alphabet = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

// Gensym makes a random string of the given length.
func Gensym(n int) string {
	bs := make([]byte, n)
	for i := range bs {
		bs[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(bs)
}

// DeepCopy round-trips x through JSON, which both canonicalizes it
// (map[interface{}]interface{} becomes map[string]interface{}, and so
// on) and guarantees no sharing with the original value. Used
// anywhere the FSM must not let two frames alias the same map or
// slice: push, let, and literal.
func DeepCopy(x interface{}) (interface{}, error) {
	if x == nil {
		return nil, nil
	}
	js, err := json.Marshal(x)
	if err != nil {
		return nil, err
	}
	var y interface{}
	if err := json.Unmarshal(js, &y); err != nil {
		return nil, err
	}
	return y, nil
}

// AsObject asserts that x is a JSON object, returning it as a plain
// map. Used where the spec requires "params" to be a JSON object.
func AsObject(x interface{}) (map[string]interface{}, bool) {
	m, ok := x.(map[string]interface{})
	return m, ok
}
