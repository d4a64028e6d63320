package normalize

import (
	"net/http"
	"strings"
)

// Headers converts an arbitrary header representation into a canonical
// string-to-string mapping. Key case is preserved as supplied; multi-valued
// keys are joined with ", ". Accepted representations:
//
//   - map[string]string (copied)
//   - http.Header / map[string][]string
//   - ordered pair list [][2]string
//   - raw header block "Key: value" lines separated by CRLF or LF
//
// Unrecognized representations yield an empty map, never an error.
func Headers(v any) map[string]string {
	switch h := v.(type) {
	case nil:
		return map[string]string{}
	case map[string]string:
		out := make(map[string]string, len(h))
		for k, val := range h {
			out[k] = val
		}
		return out
	case http.Header:
		return fromMultiValued(h)
	case map[string][]string:
		return fromMultiValued(h)
	case [][2]string:
		out := make(map[string]string, len(h))
		for _, pair := range h {
			appendValue(out, pair[0], pair[1])
		}
		return out
	case string:
		return fromHeaderBlock(h)
	default:
		return map[string]string{}
	}
}

func fromMultiValued(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, values := range h {
		out[k] = strings.Join(values, ", ")
	}
	return out
}

func fromHeaderBlock(block string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		appendValue(out, strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return out
}

func appendValue(m map[string]string, key, value string) {
	if existing, ok := m[key]; ok {
		m[key] = existing + ", " + value
		return
	}
	m[key] = value
}
