package docstore

import "strings"

// GetPath reads a dotted field path such as "stats.applied".
func GetPath(data Data, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = map[string]any(data)
	for _, p := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath writes a dotted field path, creating intermediate objects as needed.
func SetPath(data Data, path string, value any) {
	parts := strings.Split(path, ".")
	cur := map[string]any(data)
	for _, p := range parts[:len(parts)-1] {
		next, ok := asMap(cur[p])
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// DeletePath removes a dotted field path. Missing paths are ignored.
func DeletePath(data Data, path string) {
	parts := strings.Split(path, ".")
	cur := map[string]any(data)
	for _, p := range parts[:len(parts)-1] {
		next, ok := asMap(cur[p])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Data:
		return t, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
