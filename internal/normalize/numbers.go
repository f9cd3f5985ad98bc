package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const maxDepth = 8

var (
	nonPriceChars = regexp.MustCompile(`[^\d.]`)
	digitRun      = regexp.MustCompile(`\d+`)
	allDigits     = regexp.MustCompile(`^\d+$`)
	itemIDInURL   = regexp.MustCompile(`_(\d+)(?:\?|$)`)
)

// NormalizePrice coerces a price-like value to whole rubles.
//
//   - numbers are truncated toward zero
//   - strings are stripped of everything but digits and '.', then parsed;
//     nothing left means no price
//   - booleans map to 1 and 0
//   - objects recurse into the first present key of value, amount, price,
//     sum, cost
func NormalizePrice(v any) *int64 {
	return normalizePrice(v, 0)
}

func normalizePrice(v any, depth int) *int64 {
	if v == nil || depth > maxDepth {
		return nil
	}
	if f, ok := toFloat(v); ok {
		return truncInt(f)
	}
	switch t := v.(type) {
	case string:
		s := nonPriceChars.ReplaceAllString(t, "")
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return truncInt(f)
	case bool:
		return boolInt(t)
	case map[string]any:
		return normalizePrice(coalesce(t["value"], t["amount"], t["price"], t["sum"], t["cost"]), depth+1)
	}
	return nil
}

// NormalizeUnread coerces an unread-counter-like value to a non-negative
// integer. Strings are parsed whole, or else by their first digit run.
// Objects recurse into count, value, total, messages, unread.
func NormalizeUnread(v any) *int64 {
	return normalizeUnread(v, 0)
}

func normalizeUnread(v any, depth int) *int64 {
	if v == nil || depth > maxDepth {
		return nil
	}
	clamp := func(f float64) *int64 {
		return truncInt(math.Max(f, 0))
	}
	if f, ok := toFloat(v); ok {
		return clamp(f)
	}
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return clamp(f)
		}
		if m := digitRun.FindString(s); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return clamp(f)
			}
		}
		return nil
	case bool:
		return boolInt(t)
	case map[string]any:
		return normalizeUnread(coalesce(t["count"], t["value"], t["total"], t["messages"], t["unread"]), depth+1)
	}
	return nil
}

// truncInt truncates f toward zero. Values outside the int64 range, NaN
// and infinities yield nil.
func truncInt(f float64) *int64 {
	if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	n := int64(math.Trunc(f))
	return &n
}

func boolInt(b bool) *int64 {
	var n int64
	if b {
		n = 1
	}
	return &n
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	"2006-01-02",
}

// NormalizeTime interprets provider timestamps. Integral values are judged by
// the digit count of their integer part: fewer than 10 digits are rejected,
// 10 digits are Unix seconds, and any other count is read as Unix
// milliseconds within the ±8.64e15 ms date range. Other strings go through a
// list of common date layouts. The result is UTC; nil means uninterpretable.
func NormalizeTime(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		u := t.UTC()
		return &u
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if allDigits.MatchString(s) {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil
			}
			return fromEpoch(f, len(strings.TrimLeft(s, "0")))
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				u := ts.UTC()
				return &u
			}
		}
		return nil
	}
	f, ok := toFloat(v)
	if !ok || f <= 0 || f > maxEpochMillis {
		return nil
	}
	return fromEpoch(f, len(strconv.FormatInt(int64(math.Trunc(f)), 10)))
}

// maxEpochMillis bounds millisecond timestamps to ±100,000,000 days.
const maxEpochMillis = 8.64e15

func fromEpoch(f float64, digits int) *time.Time {
	var ts time.Time
	switch {
	case digits < 10 || f > maxEpochMillis:
		return nil
	case digits == 10:
		sec, frac := math.Modf(f)
		ts = time.Unix(int64(sec), int64(frac*1e9))
	default:
		ts = time.UnixMilli(int64(f))
	}
	u := ts.UTC()
	return &u
}

// ItemIDFromURL extracts the trailing listing id from an ad URL such as
// https://www.avito.ru/moskva/velosipedy/bike_7671727110?src=chat.
func ItemIDFromURL(u string) *int64 {
	m := itemIDInURL.FindStringSubmatch(strings.TrimSpace(u))
	if m == nil {
		return nil
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
