package domain

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// RawBag is the decoded form of a Chat.Raw side store.
type RawBag map[string]any

// DecodeRaw decodes a JSON column into a bag. Non-object or invalid JSON
// yields an empty bag so callers can always write into the result.
func DecodeRaw(j datatypes.JSON) RawBag {
	out := RawBag{}
	if len(j) == 0 {
		return out
	}
	var m map[string]any
	if err := json.Unmarshal(j, &m); err != nil || m == nil {
		return out
	}
	return RawBag(m)
}

// Encode marshals the bag back into a JSON column value.
func (b RawBag) Encode() datatypes.JSON {
	if b == nil {
		return datatypes.JSON("{}")
	}
	buf, err := json.Marshal(map[string]any(b))
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(buf)
}

// Object returns the nested object under key, creating it when absent or
// when the stored value is not an object.
func (b RawBag) Object(key string) map[string]any {
	if v, ok := b[key].(map[string]any); ok {
		return v
	}
	m := map[string]any{}
	b[key] = m
	return m
}

// String returns the string stored under key, or "".
func (b RawBag) String(key string) string {
	s, _ := b[key].(string)
	return s
}

// MustJSON marshals v into a JSON column, falling back to an empty object.
func MustJSON(v any) datatypes.JSON {
	if raw, ok := v.(json.RawMessage); ok && json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(buf)
}
