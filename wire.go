package rom

import (
	"fmt"
	"math"
)

// IsWire reports whether v is a wire value: nil, bool, int32, int64,
// float32, float64, string, a []any of wire values, or a *Props of
// wire values.
func IsWire(v any) bool {
	switch x := v.(type) {
	case nil, bool, int32, int64, float32, float64, string:
		return true
	case []any:
		for _, e := range x {
			if !IsWire(e) {
				return false
			}
		}
		return true
	case *Props:
		if x == nil {
			return false
		}
		for _, e := range x.All() {
			if !IsWire(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// wireTypeName returns the name of the wire category of v, for
// diagnostics.
func wireTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int32:
		return "int"
	case int64:
		return "int64"
	case float32:
		return "float"
	case float64:
		return "double"
	case string:
		return "String"
	case []any:
		return "list"
	case *Props:
		return "Props"
	default:
		return fmt.Sprintf("non-wire %T", v)
	}
}

// toInt32 converts a numeric wire value to an int32, if it can be
// done without loss.
func toInt32(v any) (int32, bool) {
	i, ok := toInt64(v)
	if !ok || i < math.MinInt32 || i > math.MaxInt32 {
		return 0, false
	}
	return int32(i), true
}

// toInt64 converts a numeric wire value to an int64, if it can be
// done without loss.
func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float32:
		return floatToInt64(float64(x))
	case float64:
		return floatToInt64(x)
	}
	return 0, false
}

func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// toFloat64 converts a numeric wire value to a float64. Integers
// beyond 2^53 lose precision.
func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// toFloat32 converts a numeric wire value to a float32, rounding to
// the nearest representable value. Values beyond the float32 range
// are rejected.
func toFloat32(v any) (float32, bool) {
	if f, ok := v.(float32); ok {
		return f, true
	}
	f, ok := toFloat64(v)
	if !ok || math.Abs(f) > math.MaxFloat32 {
		return 0, false
	}
	return float32(f), true
}
