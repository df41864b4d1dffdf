// Package params prepares sparse caller-supplied field maps for store filters
// and updates.
package params

import "strings"

// Params maps document field names to caller-supplied values.
type Params map[string]any

// Sanitize removes, in place, every entry whose value is nil, an empty string,
// or a string that is blank after trimming whitespace.
func Sanitize(p Params) {
	for key, value := range p {
		if blank(value) {
			delete(p, key)
		}
	}
}

// String returns the value stored under key when it is a string.
func (p Params) String(key string) (string, bool) {
	value, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func blank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case *string:
		return v == nil || strings.TrimSpace(*v) == ""
	default:
		return false
	}
}
