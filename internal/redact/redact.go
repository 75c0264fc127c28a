// Package redact implements the secret-scrubbing rules activities are put
// through before persistence (spec.md §4.5). It mirrors the key-name
// regex-matching style the teacher repo uses for log redaction
// (internal/observability.DefaultRedactPatterns), generalized here to
// recursively walk an arbitrary JSON value tree rather than scan log lines.
package redact

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Redacted is the literal replacement value for a matched secret (§4.5).
const Redacted = "[REDACTED]"

// secretKeyPattern matches the case-insensitive union of key names the spec
// requires redacting, anchored to the whole key so "api_key" matches but
// "api_key_hint_length" does not. "authorization" is included alongside the
// spec's named patterns since an Authorization header is exactly the
// bearer-token-carrying key the whole list exists to catch (spec.md §4.5's
// worked example redacts one).
var secretKeyPattern = regexp.MustCompile(
	`(?i)^(api[_-]?key|apikey|password|passwd|pwd|secret|token|credential|auth[_-]?token|access[_-]?token|private[_-]?key|ssh[_-]?key|authorization)$`,
)

// isSecretKey reports whether key names a value that must be redacted. HTTP
// header keys conventionally carry an "X-" prefix (X-Api-Key, X-Auth-Token),
// so that prefix is stripped before matching against secretKeyPattern.
func isSecretKey(key string) bool {
	trimmed := key
	if len(trimmed) > 2 && strings.EqualFold(trimmed[:2], "x-") {
		trimmed = trimmed[2:]
	}
	return secretKeyPattern.MatchString(trimmed)
}

// JSON redacts secret values out of a JSON-encoded tool_input or tool_output
// string and returns the redacted JSON. If raw is not valid JSON, it is
// returned unchanged: redaction only inspects structured key/value pairs, a
// scalar string payload has no keys to match.
func JSON(raw string) (string, error) {
	if raw == "" {
		return raw, nil
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return raw, nil
	}

	redacted := walk(value)

	out, err := json.Marshal(redacted)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func walk(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			if isSecretKey(key) {
				out[key] = Redacted
				continue
			}
			out[key] = walk(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = walk(item)
		}
		return out
	default:
		return v
	}
}
