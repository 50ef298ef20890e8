package prompt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Funcs returns the helper functions available to every template.
//
// Values reach templates through Flatten, so numbers arrive as float64,
// times as RFC 3339 strings and objects as map[string]any.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"minutes":   minutes,
		"clock":     clock,
		"count":     count,
		"placeName": placeName,
		"inc":       inc,
		"meters":    meters,
		"trim":      strings.TrimSpace,
	}
}

// minutes converts seconds to whole minutes, rounding half up.
func minutes(seconds any) int {
	return int(math.Round(toFloat(seconds) / 60))
}

// meters renders a distance without a trailing fraction for whole meters.
func meters(distance any) string {
	return strconv.FormatFloat(math.Round(toFloat(distance)*10)/10, 'f', -1, 64)
}

// clock formats an RFC 3339 timestamp as HH:MM in its own offset.
func clock(ts any) string {
	s, ok := ts.(string)
	if !ok {
		if t, ok := ts.(time.Time); ok {
			return t.Format("15:04")
		}
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return t.Format("15:04")
}

// count is len for values that may be nil.
func count(v any) int {
	switch x := v.(type) {
	case nil:
		return 0
	case []any:
		return len(x)
	case map[string]any:
		return len(x)
	case string:
		return len(x)
	default:
		return 0
	}
}

// placeName returns the place name, or its coordinates for unnamed places.
func placeName(place any) string {
	m, ok := place.(map[string]any)
	if !ok {
		return "unknown place"
	}
	if name, ok := m["name"].(string); ok && name != "" {
		return name
	}
	if coords, ok := m["coordinates"].(map[string]any); ok {
		return fmt.Sprintf("%.4f, %.4f", toFloat(coords["latitude"]), toFloat(coords["longitude"]))
	}
	return "unknown place"
}

func inc(i int) int {
	return i + 1
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
