// ABOUTME: Activity normalizer turning request bodies into canonical Activity records
// ABOUTME: Raw streams and transport-parsed bodies share one validation and date coercion path

package activity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrMalformedActivity reports a request body that is not a usable activity.
var ErrMalformedActivity = errors.New("malformed activity")

// maxBodyBytes bounds how much of a raw request stream is read.
const maxBodyBytes = 4 << 20

// dateFields are rewritten from strings into instants during normalization.
var dateFields = []string{"timestamp", "localTimestamp", "expiration"}

// dateLayouts are tried in order when coercing date-like strings.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Parse reads a raw request stream and normalizes it.
func Parse(r io.Reader) (*Activity, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedActivity)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrMalformedActivity, err)
	}
	return fromBytes(data)
}

// FromBody normalizes a body the transport may already have decoded. It accepts
// a decoded JSON object, raw bytes, json.RawMessage, or an *Activity.
func FromBody(body any) (*Activity, error) {
	switch b := body.(type) {
	case nil:
		return nil, fmt.Errorf("%w: empty body", ErrMalformedActivity)
	case *Activity:
		if b == nil {
			return nil, fmt.Errorf("%w: empty body", ErrMalformedActivity)
		}
		if b.Type == "" {
			return nil, fmt.Errorf("%w: missing type", ErrMalformedActivity)
		}
		return b, nil
	case []byte:
		return fromBytes(b)
	case json.RawMessage:
		return fromBytes(b)
	case string:
		return fromBytes([]byte(b))
	case map[string]any:
		return fromObject(b)
	default:
		return nil, fmt.Errorf("%w: body is %T, not an object", ErrMalformedActivity, body)
	}
}

func fromBytes(data []byte) (*Activity, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedActivity, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: body is not an object", ErrMalformedActivity)
	}
	return fromObject(obj)
}

// fromObject validates the decoded object, coerces date fields in place and
// decodes the result into an Activity.
func fromObject(obj map[string]any) (*Activity, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: body is not an object", ErrMalformedActivity)
	}
	if _, ok := obj["type"].(string); !ok {
		return nil, fmt.Errorf("%w: type must be a string", ErrMalformedActivity)
	}

	for _, field := range dateFields {
		v, present := obj[field]
		if !present || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", ErrMalformedActivity, field)
		}
		if s == "" {
			delete(obj, field)
			continue
		}
		t, err := ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedActivity, field, err)
		}
		obj[field] = t
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedActivity, err)
	}
	var a Activity
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedActivity, err)
	}
	return &a, nil
}

// ParseDate parses a wire date string, keeping its UTC offset.
func ParseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q: %w", s, lastErr)
}
