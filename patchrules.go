package restive

import "strings"

// PatchRule is one (path, rawValue) pair from a patch directive header. The
// path is a JSONPath or XPath expression; the raw value may still contain
// unresolved template variables.
type PatchRule struct {
	Path     string
	RawValue string
}

// ParsePatchRules parses one or more raw directive header values into an
// ordered rule list. Values are joined with ";" and split back into chunks
// honoring backslash escapes, so rule values may contain literal semicolons.
// Chunks without an unescaped "=" outside quotes and nesting, or with an
// empty path, are dropped: directive headers are hand-edited and a partially
// malformed value should not fail the request.
func ParsePatchRules(headerValues ...string) []PatchRule {
	var rules []PatchRule
	for _, chunk := range splitRuleChunks(strings.Join(headerValues, ";")) {
		path, rawValue, ok := splitPathValue(chunk)
		if !ok || path == "" {
			continue
		}
		rules = append(rules, PatchRule{Path: path, RawValue: rawValue})
	}
	return rules
}

// splitRuleChunks splits a joined header value on ";" while honoring the
// escapes `\;` and `\\`. Other backslash sequences pass through untouched for
// the path/value scanner.
func splitRuleChunks(raw string) []string {
	var chunks []string
	var b strings.Builder
	escaping := false
	for _, r := range raw {
		if escaping {
			switch r {
			case ';', '\\':
				b.WriteRune(r)
			default:
				b.WriteRune('\\')
				b.WriteRune(r)
			}
			escaping = false
			continue
		}
		switch r {
		case '\\':
			escaping = true
		case ';':
			chunks = append(chunks, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if escaping {
		b.WriteByte('\\')
	}
	return append(chunks, b.String())
}

// splitPathValue finds the first "=" that is outside single/double quotes,
// outside bracket/paren nesting, and not backslash-escaped, and splits the
// chunk there. JSONPath filter expressions like [?(@.status=='active')] keep
// their inner "=" characters intact. The boolean is false when no delimiter
// exists.
func splitPathValue(chunk string) (path, value string, ok bool) {
	escaping := false
	inSingleQuote := false
	inDoubleQuote := false
	bracketDepth := 0
	parenDepth := 0

	for i, r := range chunk {
		if escaping {
			escaping = false
			continue
		}
		switch r {
		case '\\':
			escaping = true
		case '\'':
			if !inDoubleQuote {
				inSingleQuote = !inSingleQuote
			}
		case '"':
			if !inSingleQuote {
				inDoubleQuote = !inDoubleQuote
			}
		case '[':
			if !inSingleQuote && !inDoubleQuote {
				bracketDepth++
			}
		case ']':
			if !inSingleQuote && !inDoubleQuote && bracketDepth > 0 {
				bracketDepth--
			}
		case '(':
			if !inSingleQuote && !inDoubleQuote {
				parenDepth++
			}
		case ')':
			if !inSingleQuote && !inDoubleQuote && parenDepth > 0 {
				parenDepth--
			}
		case '=':
			if !inSingleQuote && !inDoubleQuote && bracketDepth == 0 && parenDepth == 0 {
				return strings.TrimSpace(chunk[:i]), strings.TrimSpace(chunk[i+1:]), true
			}
		}
	}
	return "", "", false
}
