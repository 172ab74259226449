package decode

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// scalarFromText converts element text to the Go value for t.
func scalarFromText(t Type, text string) (any, error) {
	switch t {
	case String, "":
		return text, nil
	case Integer, Long:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", t, text, err)
		}
		return n, nil
	case Float, Double:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", t, text, err)
		}
		return f, nil
	case Boolean:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", t, text, err)
		}
		return b, nil
	case Blob:
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", t, err)
		}
		return b, nil
	case Timestamp:
		return parseTimestamp(strings.TrimSpace(text))
	default:
		return nil, fmt.Errorf("type %s is not a scalar", t)
	}
}

func parseTimestamp(text string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return ts, nil
	}
	if secs, err := strconv.ParseFloat(text, 64); err == nil {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC(), nil
	}
	if ts, err := time.Parse(time.RFC1123, text); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognised format", text)
}
