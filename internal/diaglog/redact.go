package diaglog

import "strings"

// redacted replaces sensitive values in log payloads.
const redacted = "[REDACTED]"

// sensitiveKeys are matched case-insensitively. Image and audio payloads are
// dropped as well: they are large and may carry personal photographs.
var sensitiveKeys = map[string]bool{
	"authorization": true,
	"token":         true,
	"api_key":       true,
	"password":      true,
	"secret":        true,
	"image":         true,
	"img":           true,
	"audio":         true,
}

// Redact returns a copy of v with the values of sensitive keys replaced.
// Nested maps and slices are walked; other types are returned unchanged.
func Redact(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if sensitiveKeys[strings.ToLower(k)] {
				out[k] = redacted
				continue
			}
			out[k] = Redact(child)
		}
		return out
	case map[string]string:
		out := make(map[string]interface{}, len(val))
		for k, s := range val {
			if sensitiveKeys[strings.ToLower(k)] {
				out[k] = redacted
				continue
			}
			out[k] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = Redact(elem)
		}
		return out
	default:
		return v
	}
}
