package restive

import "strings"

// splitState tracks which section of a request block the splitter is in.
type splitState int

const (
	stateURL splitState = iota
	stateHeader
	stateBody
)

const (
	requestSeparator   = "###"
	commentPrefix      = "#"
	slashCommentPrefix = "//"
)

// isCommentLine reports whether a trimmed line is a comment. Separator lines
// ("###") are comments too, but the file-level parser consumes those first.
func isCommentLine(trimmedLine string) bool {
	return strings.HasPrefix(trimmedLine, commentPrefix) || strings.HasPrefix(trimmedLine, slashCommentPrefix)
}

// isQueryContinuation reports whether a trimmed line continues the query
// string of the preceding request line.
func isQueryContinuation(trimmedLine string) bool {
	return strings.HasPrefix(trimmedLine, "&") || strings.HasPrefix(trimmedLine, "?")
}

var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true,
	"HEAD": true, "OPTIONS": true, "TRACE": true, "CONNECT": true,
	"LOCK": true, "UNLOCK": true, "PROPFIND": true, "PROPPATCH": true,
	"COPY": true, "MOVE": true, "MKCOL": true,
}

// isKnownMethod reports whether token is a recognized HTTP method name.
func isKnownMethod(token string) bool {
	return knownMethods[strings.ToUpper(token)]
}
