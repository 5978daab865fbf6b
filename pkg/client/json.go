package client

import (
	"bytes"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// json - replacement of the standard encoding/json library, it is faster for larger responses.
var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

// parseJSON decodes the whole body to a generic value.
// Numbers are decoded as float64, objects as map[string]any, arrays as []any.
// An empty body or data after the value are errors.
func parseJSON(body []byte, contentType string) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("cannot decode JSON: response body is empty")
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		if mediaType := parseMediaType(contentType); mediaType != "" && !isJSONContentType(mediaType) {
			return nil, fmt.Errorf(`cannot decode JSON, content type is "%s": %w`, mediaType, err)
		}
		return nil, fmt.Errorf("cannot decode JSON: %w", err)
	}
	return value, nil
}
