package restive

import (
	"log/slog"
	"net/http"
	"strings"
)

// foldHeaderLines turns raw "Key: Value" header lines into an http.Header.
// Lookups through http.Header are case-insensitive. Duplicate names keep their
// values separate at this stage; merging happens later, once the configured
// directive header names are known and can be exempted. Lines without a colon
// are dropped.
func foldHeaderLines(lines []string) http.Header {
	headers := make(http.Header)
	for _, line := range lines {
		key, value, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(key) == "" {
			slog.Debug("foldHeaderLines: dropping malformed header line", "line", line)
			continue
		}
		headers.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return headers
}

// mergeDuplicateHeaders collapses duplicate header names into a single
// comma-joined value, or "; " for Cookie the way user agents concatenate
// cookie pairs. Names for which keepSeparate reports true are left as multiple
// values; patch directive headers rely on this so each raw value reaches the
// rule tokenizer intact.
func mergeDuplicateHeaders(headers http.Header, keepSeparate func(key string) bool) {
	for key, values := range headers {
		if len(values) < 2 || (keepSeparate != nil && keepSeparate(key)) {
			continue
		}
		sep := ", "
		if strings.EqualFold(key, "Cookie") {
			sep = "; "
		}
		headers[key] = []string{strings.Join(values, sep)}
	}
}

// headerValues returns every value recorded for a header name, matching
// case-insensitively.
func headerValues(headers http.Header, key string) []string {
	return headers.Values(key)
}
