package logs

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

var reservedKeys = map[string]bool{"time": true, "level": true, "msg": true}

// Format renders a JSON log record as "15:04:05 LEVEL message key=value ...".
// Lines that are not JSON objects are returned unchanged.
func Format(line string) string {
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil || record == nil {
		return line
	}

	var b strings.Builder
	if ts, ok := record["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			b.WriteString(parsed.Local().Format(time.TimeOnly))
			b.WriteByte(' ')
		}
	}
	if level, ok := record["level"].(string); ok {
		fmt.Fprintf(&b, "%-5s ", strings.ToUpper(level))
	}
	if msg, ok := record["msg"].(string); ok {
		b.WriteString(msg)
	}

	keys := make([]string, 0, len(record))
	for key := range record {
		if !reservedKeys[key] {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, formatValue(record[key]))
	}
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if val == "" || strings.ContainsAny(val, " \t\"=") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case nil:
		return "null"
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
