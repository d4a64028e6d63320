package export

import (
	"sort"
	"strings"

	"github.com/gettapd/tapd/pkg/tracelog"
)

// Curl renders each record as a runnable curl command, one per line,
// newest record first (matching snapshot order). Redacted header values
// are exported as-is; the masked placeholder makes the command inert
// rather than leaking the original secret.
func Curl(records []*tracelog.Record) string {
	var b strings.Builder
	for i, rec := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(curlCommand(rec))
		b.WriteByte('\n')
	}
	return b.String()
}

// CurlCommand renders a single record.
func CurlCommand(rec *tracelog.Record) string {
	return curlCommand(rec)
}

func curlCommand(rec *tracelog.Record) string {
	parts := []string{"curl"}
	if rec.Method != "" && rec.Method != "GET" {
		parts = append(parts, "-X", rec.Method)
	}
	parts = append(parts, shellQuote(rec.URL))

	// Deterministic header order keeps exports diffable.
	keys := make([]string, 0, len(rec.RequestHeaders))
	for key := range rec.RequestHeaders {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, "-H", shellQuote(key+": "+rec.RequestHeaders[key]))
	}

	if body := bodyText(rec.RequestBody); body != "" {
		parts = append(parts, "--data-raw", shellQuote(body))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
