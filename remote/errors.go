package remote

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// APIError is returned when the remote answers with a non-2xx status.
type APIError struct {
	Status   int
	Method   string
	Path     string
	Messages []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("remote %s %s: status %d", e.Method, e.Path, e.Status)
	if len(e.Messages) > 0 {
		msg += ": " + strings.Join(e.Messages, "; ")
	}
	return msg
}

// Temporary reports whether retrying the same request later could succeed.
func (e *APIError) Temporary() bool {
	switch e.Status {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// errorMessages extracts human readable messages from an error body. The admin
// backend answers with {"detail": "..."}, {"messages": [...]}, a bare list, or
// a map of field names to lists of problems.
func errorMessages(body []byte) []string {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := sonic.Unmarshal(body, &v); err != nil {
		text := strings.TrimSpace(string(body))
		if len(text) > 200 {
			text = text[:200]
		}
		if text == "" {
			return nil
		}
		return []string{text}
	}
	switch b := v.(type) {
	case string:
		return []string{b}
	case []any:
		return flatten("", b)
	case map[string]any:
		for _, k := range []string{"messages", "detail", "message", "error"} {
			if m, ok := b[k]; ok {
				return flatten("", m)
			}
		}
		keys := make([]string, 0, len(b))
		for k := range b {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, flatten(k, b[k])...)
		}
		return out
	}
	return nil
}

func flatten(field string, v any) []string {
	prefix := ""
	if field != "" {
		prefix = field + ": "
	}
	switch x := v.(type) {
	case string:
		return []string{prefix + x}
	case []any:
		var out []string
		for _, item := range x {
			out = append(out, flatten(field, item)...)
		}
		return out
	case nil:
		return nil
	default:
		return []string{prefix + fmt.Sprint(x)}
	}
}
