package request

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
)

const (
	ContentTypeForm = "application/x-www-form-urlencoded; charset=UTF-8"
	ContentTypeJSON = "application/json; charset=UTF-8"
)

// Payload is the data sent with a request.
// It travels in the query string for GET/HEAD and in the body for other verbs.
//
// The interface is sealed, implementations are Form and JSON.
type Payload interface {
	// ContentType returns the value of the forced Content-Type header.
	ContentType() string
	// Query returns URL-encoded key=value pairs, used for GET and HEAD.
	Query() (string, error)
	// Body returns the request body, used for all other verbs.
	Body() ([]byte, error)

	isPayload()
}

// Form is an ordered multi-value key/value container, serialized as URL-encoded form data.
type Form struct {
	entries []formEntry
}

type formEntry struct {
	key   string
	value string
}

// JSON is an ordered key/value object, serialized as JSON.
// Keys keep their insertion order, both in the body and in the query string.
type JSON struct {
	object *orderedmap.OrderedMap
}

// NewForm creates an empty Form.
func NewForm() *Form {
	return &Form{}
}

// FormFromValues creates a Form from url.Values, keys are sorted.
func FormFromValues(values url.Values) *Form {
	f := NewForm()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range values[k] {
			f.Append(k, v)
		}
	}
	return f
}

// FormFromMap converts a JSON like map to a Form, keys are sorted.
// A slice value is expanded to "key[0]", "key[1]", ... entries,
// a map value is expanded to "key[subKey]" entries, other values are cast to string.
func FormFromMap(in map[string]any) (*Form, error) {
	f := NewForm()
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := flattenFormValue(f, k, in[k]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Append adds the value to the key, existing values are kept.
// A nil receiver returns a new Form.
func (f *Form) Append(key, value string) *Form {
	if f == nil {
		f = NewForm()
	}
	f.entries = append(f.entries, formEntry{key: key, value: value})
	return f
}

// Set replaces all values of the key.
// The new value takes the position of the first existing value, or it is appended.
// A nil receiver returns a new Form.
func (f *Form) Set(key, value string) *Form {
	if f == nil {
		f = NewForm()
	}
	out := make([]formEntry, 0, len(f.entries)+1)
	found := false
	for _, e := range f.entries {
		if e.key != key {
			out = append(out, e)
		} else if !found {
			out = append(out, formEntry{key: key, value: value})
			found = true
		}
	}
	if !found {
		out = append(out, formEntry{key: key, value: value})
	}
	f.entries = out
	return f
}

// Get returns the first value of the key.
func (f *Form) Get(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	for _, e := range f.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return "", false
}

// Values returns a copy of the form as url.Values.
func (f *Form) Values() url.Values {
	out := make(url.Values)
	if f == nil {
		return out
	}
	for _, e := range f.entries {
		out.Add(e.key, e.value)
	}
	return out
}

// Len returns number of entries.
func (f *Form) Len() int {
	if f == nil {
		return 0
	}
	return len(f.entries)
}

func (f *Form) ContentType() string {
	return ContentTypeForm
}

func (f *Form) Query() (string, error) {
	return f.encode(), nil
}

func (f *Form) Body() ([]byte, error) {
	return []byte(f.encode()), nil
}

func (f *Form) encode() string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	for i, e := range f.entries {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(e.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(e.value))
	}
	return b.String()
}

func (f *Form) isPayload() {}

// NewJSON creates a JSON payload from ordered pairs.
func NewJSON(pairs ...orderedmap.Pair) *JSON {
	object := orderedmap.New()
	for _, p := range pairs {
		object.Set(p.Key, p.Value)
	}
	return &JSON{object: object}
}

// JSONFromMap creates a JSON payload from a map, keys are sorted.
func JSONFromMap(in map[string]any) *JSON {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := NewJSON()
	for _, k := range keys {
		out.Set(k, in[k])
	}
	return out
}

// JSONFromOrderedMap wraps an existing ordered map, the map is not copied.
func JSONFromOrderedMap(object *orderedmap.OrderedMap) *JSON {
	if object == nil {
		return NewJSON()
	}
	return &JSON{object: object}
}

// JSONFromStruct converts a struct to a JSON payload, fields keep the struct order.
// Only allowedFields are converted, if allowedFields is empty, all fields are converted.
//
// Field name is read from `writeas` tag or from "json" tag as fallback.
// Field with tag `readonly:"true"` is ignored.
// Field with tag `writeoptional:"true"` is exported only if value is not empty.
func JSONFromStruct(in any, allowedFields ...string) (*JSON, error) {
	out := NewJSON()
	if err := structToOrderedMap(in, out.object, allowedFields); err != nil {
		return nil, err
	}
	return out, nil
}

// Set sets the key, a new key is appended at the end.
// A nil receiver returns a new JSON payload.
func (j *JSON) Set(key string, value any) *JSON {
	if j == nil {
		j = NewJSON()
	}
	if j.object == nil {
		j.object = orderedmap.New()
	}
	j.object.Set(key, value)
	return j
}

// Get returns value of the key.
func (j *JSON) Get(key string) (any, bool) {
	if j == nil || j.object == nil {
		return nil, false
	}
	return j.object.Get(key)
}

// Keys returns keys in the insertion order.
func (j *JSON) Keys() []string {
	if j == nil || j.object == nil {
		return nil
	}
	return j.object.Keys()
}

func (j *JSON) ContentType() string {
	return ContentTypeJSON
}

func (j *JSON) Query() (string, error) {
	var b strings.Builder
	for i, k := range j.Keys() {
		v, _ := j.object.Get(k)
		str, err := castToString(v)
		if err != nil {
			return "", fmt.Errorf(`cannot serialize query parameter "%s": %w`, k, err)
		}
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(str))
	}
	return b.String(), nil
}

func (j *JSON) Body() ([]byte, error) {
	if j == nil || j.object == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	if err := encodeBody(&buf, j.object); err != nil {
		return nil, fmt.Errorf(`cannot encode JSON body: %w`, err)
	}
	return buf.Bytes(), nil
}

func (j *JSON) isPayload() {}
