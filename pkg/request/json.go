package request

import (
	"bytes"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/keboola/go-utils/pkg/orderedmap"
)

// json - replacement of the standard encoding/json library, it is faster for larger responses.
var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

// bodyJSON encodes request bodies, "<", ">", "&", U+2028 and U+2029 are written as they are.
var bodyJSON = jsoniter.Config{EscapeHTML: false, SortMapKeys: true, ValidateJsonRawMessage: true}.Froze() //nolint:gochecknoglobals

// encodeBody writes the value as compact JSON.
// Ordered maps keep their key order at any depth.
func encodeBody(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case *orderedmap.OrderedMap:
		if v == nil {
			buf.WriteString("null")
			return nil
		}
		return encodeBodyObject(buf, v.Keys(), v.Get)
	case orderedmap.OrderedMap:
		return encodeBodyObject(buf, v.Keys(), v.Get)
	case map[string]any:
		if v == nil {
			buf.WriteString("null")
			return nil
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return encodeBodyObject(buf, keys, func(k string) (any, bool) {
			item, ok := v[k]
			return item, ok
		})
	case []any:
		if v == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeBody(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		out, err := bodyJSON.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(out)
		return nil
	}
}

func encodeBodyObject(buf *bytes.Buffer, keys []string, get func(string) (any, bool)) error {
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := bodyJSON.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		item, _ := get(k)
		if err := encodeBody(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
