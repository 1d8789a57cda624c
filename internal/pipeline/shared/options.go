package shared

// Stage config maps arrive from JSON, so numeric options may be int or
// float64 depending on where they were decoded. These helpers coerce them.

// IntOption returns the named option as an int, or def when absent or not
// numeric.
func IntOption(config map[string]any, key string, def int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// FloatOption returns the named option as a float64, or def when absent or
// not numeric.
func FloatOption(config map[string]any, key string, def float64) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// StringOption returns the named option as a string, or def when absent.
func StringOption(config map[string]any, key, def string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return def
}

// IntValue reads an int from accumulated stage input, accepting the numeric
// types a JSON round-trip may have produced.
func IntValue(input map[string]any, key string) (int, bool) {
	switch v := input[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
