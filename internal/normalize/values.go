package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// dig walks nested objects along keys. Missing keys or non-object hops yield nil.
func dig(v any, keys ...string) any {
	cur := v
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[k]
		if !ok {
			return nil
		}
	}
	return cur
}

// obj returns v as an object or nil.
func obj(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// coalesce returns the first non-nil value.
func coalesce(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// firstObject returns the first value that is a JSON object.
func firstObject(vals ...any) map[string]any {
	for _, v := range vals {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// firstString returns the first non-blank string, trimmed. Non-string values
// are skipped.
func firstString(vals ...any) string {
	for _, v := range vals {
		if s, ok := v.(string); ok {
			if t := strings.TrimSpace(s); t != "" {
				return t
			}
		}
	}
	return ""
}

// idString renders an identifier that may arrive as a string or a number.
// Numbers are formatted without exponent; other types yield "".
func idString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}

// firstID returns the first value rendering to a non-empty id.
func firstID(vals ...any) string {
	for _, v := range vals {
		if s := idString(v); s != "" {
			return s
		}
	}
	return ""
}

// toFloat converts numeric JSON values. ok is false for anything else.
func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		p, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt accepts numbers (truncated) and strings holding a plain number.
func toInt(v any) (int64, bool) {
	if f, ok := toFloat(v); ok {
		return int64(math.Trunc(f)), true
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(math.Trunc(f)), true
		}
	}
	return 0, false
}

// firstInt returns the first value convertible by toInt.
func firstInt(vals ...any) *int64 {
	for _, v := range vals {
		if n, ok := toInt(v); ok {
			return &n
		}
	}
	return nil
}

// SameAccount reports whether id denotes the owned account. Ids are compared
// numerically; a missing or non-numeric id never matches.
func SameAccount(id string, accountID int64) bool {
	if accountID == 0 || strings.TrimSpace(id) == "" {
		return false
	}
	n, ok := toInt(id)
	return ok && n == accountID
}
