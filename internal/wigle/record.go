package wigle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Record is one search result. Field order from the response body is kept so
// the CSV columns follow the API's own ordering.
type Record struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewRecord builds a Record from alternating key/value pairs. Values are
// marshaled to JSON. It is mainly useful in tests.
func NewRecord(pairs ...any) (Record, error) {
	if len(pairs)%2 != 0 {
		return Record{}, errors.New("record pairs must be even")
	}
	rec := Record{values: make(map[string]json.RawMessage, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return Record{}, fmt.Errorf("record key at %d is %T, want string", i, pairs[i])
		}
		raw, err := json.Marshal(pairs[i+1])
		if err != nil {
			return Record{}, fmt.Errorf("marshal %s: %w", key, err)
		}
		rec.set(key, raw)
	}
	return rec, nil
}

// UnmarshalJSON decodes a JSON object while preserving key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read record: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object, got %v", tok)
	}
	r.keys = nil
	r.values = make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read record key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record key must be a string, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("read record value %s: %w", key, err)
		}
		r.set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("close record: %w", err)
	}
	return nil
}

// MarshalJSON re-encodes the record in decoded key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("marshal key: %w", err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(r.values[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) set(key string, raw json.RawMessage) {
	if r.values == nil {
		r.values = make(map[string]json.RawMessage)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = append(json.RawMessage(nil), raw...)
}

// Keys returns the field names in response order.
func (r Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Raw returns the undecoded JSON value of key.
func (r Record) Raw(key string) (json.RawMessage, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Cell renders a field for a CSV cell: strings verbatim, null as empty,
// everything else as compact JSON.
func (r Record) Cell(key string) string {
	raw, ok := r.Raw(key)
	if !ok {
		return ""
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return string(trimmed)
	}
	return compact.String()
}

// Strings returns the field as a list of strings. A JSON string yields one
// element, an array yields its string elements; anything else is not ok.
func (r Record) Strings(key string) ([]string, bool) {
	raw, ok := r.Raw(key)
	if !ok {
		return nil, false
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, false
		}
		return []string{s}, true
	case '[':
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, false
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// Cursor is the opaque searchAfter continuation token.
type Cursor string

// Empty reports whether the cursor signals the end of the result set.
func (c Cursor) Empty() bool {
	return strings.TrimSpace(string(c)) == ""
}

// UnmarshalJSON accepts a string, a number or null.
func (c *Cursor) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		*c = ""
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("decode cursor: %w", err)
		}
		*c = Cursor(s)
	default:
		*c = Cursor(trimmed)
	}
	return nil
}
