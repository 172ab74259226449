package sqsapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// encodeQuery flattens params into query-protocol form values. Lists become
// Name.1, Name.2, ...; maps become Name.N.Name and Name.N.Value with keys in
// sorted order; nested structures extend the prefix with their field names.
// Nil values are dropped.
func encodeQuery(action string, params map[string]any) (url.Values, error) {
	form := url.Values{}
	form.Set("Action", action)
	form.Set("Version", APIVersion)

	for _, name := range sortedKeys(params) {
		if err := encodeParam(form, name, queryLocationNames[name], queryMapKeyNames[name], params[name]); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return form, nil
}

func encodeParam(form url.Values, name, location, keyName string, v any) error {
	if isNil(v) {
		return nil
	}
	if location == "" {
		location = name
	}
	if keyName == "" {
		keyName = "Name"
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		v = rv.Elem().Interface()
	}

	switch x := v.(type) {
	case []byte:
		form.Set(name, base64.StdEncoding.EncodeToString(x))
		return nil
	case time.Time:
		form.Set(name, x.UTC().Format(time.RFC3339))
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := encodeValue(form, fmt.Sprintf("%s.%d", location, i+1), rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			if k.Kind() != reflect.String {
				return fmt.Errorf("map key must be a string, got %s", k.Kind())
			}
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		for i, k := range keys {
			prefix := fmt.Sprintf("%s.%d", location, i+1)
			form.Set(prefix+"."+keyName, k)
			if err := encodeValue(form, prefix+".Value", rv.MapIndex(reflect.ValueOf(k)).Interface()); err != nil {
				return err
			}
		}
		return nil
	default:
		return encodeValue(form, name, v)
	}
}

// encodeValue writes a scalar at key, or a structure given as a
// map[string]any under key.Field.
func encodeValue(form url.Values, key string, v any) error {
	if isNil(v) {
		return nil
	}
	if fields, ok := v.(map[string]any); ok {
		for _, f := range sortedKeys(fields) {
			if err := encodeValue(form, key+"."+f, fields[f]); err != nil {
				return err
			}
		}
		return nil
	}
	s, err := scalarString(v)
	if err != nil {
		return err
	}
	form.Set(key, s)
	return nil
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case []byte:
		return base64.StdEncoding.EncodeToString(x), nil
	case json.Number:
		return x.String(), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", fmt.Errorf("unsupported parameter type %T", v)
	}
}

// encodeJSON builds an awsJson1_0 request body. Nil values are dropped.
func encodeJSON(params map[string]any) ([]byte, error) {
	body := make(map[string]any, len(params))
	for k, v := range params {
		if !isNil(v) {
			body[k] = v
		}
	}
	return json.Marshal(body)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
