package tools

import (
	"strconv"
	"strings"
)

// Truthy coerces loosely typed model output to a bool. Models routinely
// send "true", "1", 1 or 1.0 where a boolean is expected.
func Truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		switch s {
		case "true", "yes", "on", "y":
			return true
		case "false", "no", "off", "n", "":
			return false
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n != 0
		}
		return false
	case nil:
		return false
	default:
		return false
	}
}
