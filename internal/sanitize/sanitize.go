// Package sanitize strips markup and control characters from untrusted input.
//
// Every string is cleaned the same way: data-image URIs are kept as is, otherwise
// script blocks are dropped together with their contents, remaining tags are
// removed, C0 control characters and DEL are stripped and the result is trimmed.
// Cleaning is idempotent.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	dataImageRe = regexp.MustCompile(`(?i)^data:image/[a-z0-9.+-]+;base64,`)
	scriptRe    = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	tagRe       = regexp.MustCompile(`<[^>]*>`)
)

// String returns the cleaned form of s
func String(s string) string {
	if dataImageRe.MatchString(s) {
		return s
	}

	s = scriptRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	s = strings.Map(dropControl, s)

	return strings.TrimSpace(s)
}

func dropControl(r rune) rune {
	if r < 0x20 || r == 0x7f {
		return -1
	}
	return r
}

// Value walks decoded JSON (maps, slices, strings) and returns a copy with every string cleaned
// Other scalars are returned unchanged
func Value(v any) any {
	switch v := v.(type) {
	case string:
		return String(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = Value(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = Value(value)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, value := range v {
			out[i] = String(value)
		}
		return out
	default:
		return v
	}
}

// Query returns a copy of query values with every value cleaned
// Parameter names are kept as is
func Query(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, vs := range values {
		cleaned := make([]string, len(vs))
		for i, v := range vs {
			cleaned[i] = String(v)
		}
		out[key] = cleaned
	}
	return out
}
