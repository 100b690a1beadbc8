package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var errInvalidDate = errors.New("invalid dateObserved")

// toNumber coerces broker values to float64. Strings holding numbers are
// accepted; anything else yields ok == false.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// nullableNumber returns nil when v does not coerce.
func nullableNumber(v any) any {
	if f, ok := toNumber(v); ok {
		return f
	}
	return nil
}

func nullableText(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

// parseDate accepts RFC 3339 strings and the JSON-LD typed literal
// {"@type": "DateTime", "@value": "..."}.
func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(d))
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", errInvalidDate, d)
		}
		return t.UTC(), nil
	case map[string]any:
		if inner, ok := d["@value"]; ok {
			return parseDate(inner)
		}
	}
	return time.Time{}, fmt.Errorf("%w: unsupported value %v", errInvalidDate, v)
}
