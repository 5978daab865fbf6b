package request

import (
	"fmt"
)

// Callback maps the parsed JSON response to the result of the call.
// The parsed value is one of: nil, bool, float64, string, []any, map[string]any.
type Callback func(json any) (any, error)

// Identity is the default Callback, it returns the parsed JSON unchanged.
func Identity(json any) (any, error) {
	return json, nil
}

// Typed adapts a function over a concrete type to a Callback.
// The parsed JSON is decoded into a new T before fn is called.
func Typed[T any](fn func(value T) (any, error)) Callback {
	return func(parsed any) (any, error) {
		var value T
		if err := Decode(parsed, &value); err != nil {
			return nil, err
		}
		return fn(value)
	}
}

// Decode maps the parsed JSON to the target pointer.
func Decode(parsed any, target any) error {
	bytes, err := json.Marshal(parsed)
	if err != nil {
		return fmt.Errorf(`cannot encode parsed JSON: %w`, err)
	}
	if err := json.Unmarshal(bytes, target); err != nil {
		return fmt.Errorf(`cannot decode parsed JSON to %T: %w`, target, err)
	}
	return nil
}
