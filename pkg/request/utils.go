package request

import (
	jsonlib "encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/spf13/cast"
)

func flattenFormValue(f *Form, key string, v any) error {
	switch v := v.(type) {
	case []string:
		for i, s := range v {
			f.Append(fmt.Sprintf("%s[%d]", key, i), s)
		}
	case []any:
		for i, item := range v {
			s, err := castToString(item)
			if err != nil {
				return fmt.Errorf(`cannot convert form field "%s[%d]": %w`, key, i, err)
			}
			f.Append(fmt.Sprintf("%s[%d]", key, i), s)
		}
	case map[string]string:
		subKeys := make([]string, 0, len(v))
		for k := range v {
			subKeys = append(subKeys, k)
		}
		sort.Strings(subKeys)
		for _, k := range subKeys {
			f.Append(fmt.Sprintf("%s[%s]", key, k), v[k])
		}
	default:
		s, err := castToString(v)
		if err != nil {
			return fmt.Errorf(`cannot convert form field "%s": %w`, key, err)
		}
		f.Append(key, s)
	}
	return nil
}

// castToString converts a payload value to its query string representation.
// Slices are joined by a comma, objects are encoded as compact JSON.
func castToString(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "null", nil
	case string:
		return v, nil
	case []string:
		return strings.Join(v, ","), nil
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			s, err := castToString(item)
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		return strings.Join(items, ","), nil
	case *orderedmap.OrderedMap, map[string]any, map[string]string:
		// Standard json encoding library is used.
		// JsonIter lib returns non-compact JSON,
		// if custom OrderedMap.MarshalJSON method is used.
		out, err := jsonlib.Marshal(v)
		if err != nil {
			return "", fmt.Errorf(`cannot cast %T to string: %w`, v, err)
		}
		return string(out), nil
	}

	// Other types
	out, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf(`cannot cast %T to string: %w`, v, err)
	}
	return out, nil
}

func structToOrderedMap(in any, out *orderedmap.OrderedMap, allowedFields []string) error {
	v := reflect.ValueOf(in)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return fmt.Errorf(`cannot convert nil %T to JSON payload`, in)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return fmt.Errorf(`cannot convert %T to JSON payload: struct expected`, in)
	}

	// Convert allowed slice to map
	allowed := make(map[string]bool)
	for _, field := range allowedFields {
		allowed[field] = true
	}

	return structFields(v, out, allowed)
}

func structFields(in reflect.Value, out *orderedmap.OrderedMap, allowed map[string]bool) error {
	t := in.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		fieldValue := in.Field(i)

		// Process embedded type
		if field.Anonymous {
			embedded := fieldValue
			for embedded.Kind() == reflect.Ptr {
				if embedded.IsNil() {
					break
				}
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				if err := structFields(embedded, out, allowed); err != nil {
					return err
				}
			}
			continue
		}

		if !field.IsExported() {
			continue
		}

		// Skip field with tag `readonly:"true"`
		if field.Tag.Get("readonly") == "true" {
			continue
		}

		// Skip field with tag `writeoptional:"true"` and empty value
		if field.Tag.Get("writeoptional") == "true" && fieldValue.IsZero() {
			continue
		}

		// Get field name
		var fieldName string
		if v := field.Tag.Get("writeas"); v != "" {
			fieldName = v
		} else if v := strings.Split(field.Tag.Get("json"), ",")[0]; v != "" {
			fieldName = v
		} else {
			return fmt.Errorf(`field "%s" of %s has no json name`, field.Name, t.String())
		}

		// Skip ignored fields
		if fieldName == "-" {
			continue
		}

		// Is allowed?
		if len(allowed) > 0 && !allowed[fieldName] {
			continue
		}

		out.Set(fieldName, fieldValue.Interface())
	}
	return nil
}
