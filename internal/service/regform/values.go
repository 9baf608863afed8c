package regform

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
)

// Equal compares two stored field values. Numbers compare by value whatever
// their Go type, so data decoded from JSON matches freshly coerced data.
func Equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	switch t := v.(type) {
	case map[string]int:
		out := make(map[string]float64, len(t))
		for k, n := range t {
			out[k] = float64(n)
		}
		return out
	case map[string]int64:
		out := make(map[string]float64, len(t))
		for k, n := range t {
			out[k] = float64(n)
		}
		return out
	case map[string]float64:
		return t
	case map[string]any:
		nums := make(map[string]float64, len(t))
		for k, item := range t {
			f, ok := toFloat(item)
			if !ok {
				return normalizeMap(t)
			}
			nums[k] = f
		}
		return nums
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, item := range m {
		out[k] = normalize(item)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	return 0, false
}

// toQuantity converts a choice quantity to a non-negative integer.
func toQuantity(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// isEmpty reports whether a stored value counts as "not filled in".
func isEmpty(v any) bool {
	switch t := normalize(v).(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case map[string]float64:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
