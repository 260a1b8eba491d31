package dubtrack

import (
	"strconv"
	"time"
)

// projectFields copies every key of src that is not excluded into dst. It runs
// after the typed fields of a model or event have been assigned; the exclude
// set keeps the untyped copy from clobbering keys that already got a stronger
// type. Nil values pass through untouched.
func projectFields(src map[string]any, exclude map[string]struct{}, dst map[string]any) {
	for k, v := range src {
		if _, skip := exclude[k]; skip {
			continue
		}
		dst[k] = v
	}
}

func excludeSet(keys ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// deepCopyMap copies a decoded JSON payload structurally, so the copy never
// aliases maps or slices the caller may mutate later.
func deepCopyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		// JSON scalars are immutable.
		return v
	}
}

// coerceTime converts the timestamp shapes the service emits: unix
// milliseconds as a number or numeric string, or an RFC 3339 string.
func coerceTime(v any) time.Time {
	switch t := v.(type) {
	case float64:
		return time.UnixMilli(int64(t))
	case int64:
		return time.UnixMilli(t)
	case int:
		return time.UnixMilli(int64(t))
	case string:
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.UnixMilli(ms)
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// payload accessors tolerant of missing or mistyped fields

func payloadString(p map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			switch t := v.(type) {
			case string:
				return t
			case float64:
				return strconv.FormatFloat(t, 'f', -1, 64)
			}
		}
	}
	return ""
}

func payloadInt(p map[string]any, keys ...string) int {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			case string:
				if n, err := strconv.Atoi(t); err == nil {
					return n
				}
			}
		}
	}
	return 0
}

func payloadBool(p map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := p[k].(bool); ok {
			return v
		}
	}
	return false
}

func payloadObject(p map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := p[k].(map[string]any); ok {
			return v
		}
	}
	return nil
}
