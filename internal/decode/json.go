package decode

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// jsonParser decodes the awsJson1_0 protocol. Members appear under their
// member names.
type jsonParser struct{}

func (p jsonParser) Parse(desc *Descriptor, shape *Shape) (map[string]any, error) {
	if desc.StatusCode >= 300 {
		return p.parseError(desc)
	}

	out := map[string]any{}
	if desc.Stream != nil {
		if shape != nil && shape.Payload != "" {
			out[shape.Payload] = desc.Stream
		}
		out["ResponseMetadata"] = responseMetadata(desc, "")
		return out, nil
	}

	if len(bytes.TrimSpace(desc.Body)) > 0 && shape != nil {
		raw, err := decodeJSON(desc.Body)
		if err != nil {
			return nil, err
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected JSON object, got %T", raw)
		}
		if err := p.fillStructure(obj, shape, out); err != nil {
			return nil, err
		}
	}
	out["ResponseMetadata"] = responseMetadata(desc, "")
	return out, nil
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (p jsonParser) fillStructure(obj map[string]any, shape *Shape, out map[string]any) error {
	for i := range shape.Members {
		m := &shape.Members[i]
		raw, ok := obj[m.Name]
		if !ok || raw == nil {
			continue
		}
		v, err := p.convert(raw, m.Shape)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		out[m.Name] = v
	}
	return nil
}

func (p jsonParser) convert(raw any, shape *Shape) (any, error) {
	if shape == nil {
		return raw, nil
	}
	switch shape.Type {
	case Structure:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object, got %T", raw)
		}
		out := map[string]any{}
		return out, p.fillStructure(obj, shape, out)
	case List:
		arr, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", raw)
		}
		items := make([]any, 0, len(arr))
		for _, e := range arr {
			v, err := p.convert(e, memberShape(shape.Member))
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case Map:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object, got %T", raw)
		}
		out := make(map[string]any, len(obj))
		for k, e := range obj {
			v, err := p.convert(e, memberShape(shape.Value))
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case Integer, Long:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", raw)
		}
		return n.Int64()
	case Float, Double:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", raw)
		}
		return n.Float64()
	case Boolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", raw)
		}
		return b, nil
	case Blob:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected base64 string, got %T", raw)
		}
		return base64.StdEncoding.DecodeString(s)
	case Timestamp:
		switch v := raw.(type) {
		case json.Number:
			secs, err := v.Float64()
			if err != nil {
				return nil, err
			}
			whole := int64(secs)
			return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC(), nil
		case string:
			return parseTimestamp(v)
		}
		return nil, fmt.Errorf("expected timestamp, got %T", raw)
	default:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return s, nil
	}
}

// parseError reads {"__type": "ns#Code", "message": "..."}. The
// x-amzn-query-error header, when present, carries the legacy query error
// code and wins over __type.
func (p jsonParser) parseError(desc *Descriptor) (map[string]any, error) {
	code := strconv.Itoa(desc.StatusCode)
	message := ""

	if raw, err := decodeJSON(desc.Body); err == nil {
		if obj, ok := raw.(map[string]any); ok {
			if t, ok := obj["__type"].(string); ok && t != "" {
				code = t[strings.LastIndex(t, "#")+1:]
			}
			for _, k := range []string{"message", "Message"} {
				if m, ok := obj[k].(string); ok {
					message = m
					break
				}
			}
		}
	}
	if qe := desc.Header.Get("X-Amzn-Query-Error"); qe != "" {
		if c, _, _ := strings.Cut(qe, ";"); c != "" {
			code = c
		}
	}
	return map[string]any{
		"Error": map[string]any{
			"Code":    code,
			"Message": message,
		},
		"ResponseMetadata": responseMetadata(desc, ""),
	}, nil
}
