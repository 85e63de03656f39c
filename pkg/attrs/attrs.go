// Package attrs works with slog-style key/value argument lists.
package attrs

// String returns the string value stored under key in a [k1, v1, k2, v2, ...]
// list. Non-string keys and values are skipped.
func String(kv []any, key string) (string, bool) {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok && k == key {
			v, ok := kv[i+1].(string)
			return v, ok
		}
	}
	return "", false
}

// SetDefault appends key/value unless key is already present or value is
// empty.
func SetDefault(kv []any, key, value string) []any {
	if value == "" {
		return kv
	}
	if _, ok := String(kv, key); ok {
		return kv
	}
	return append(kv, key, value)
}
