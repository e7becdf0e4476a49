package restive

import "net/http"

// Request represents one parsed request block from raw request text: the
// request line, folded headers and the verbatim body lines. Body content has
// not been materialized yet at this stage.
type Request struct {
	Name         string // Optional name for the request (from ### Name comment)
	Method       string
	RawURLString string
	HTTPVersion  string // e.g. "HTTP/1.1", empty when the request line carried none
	Headers      http.Header
	BodyLines    []string // Verbatim body lines; formatting (multipart boundaries) is significant

	// FilePath is the path of the file this request was parsed from, when any.
	FilePath string
	// LineNumber is the starting line of this request within its file.
	LineNumber int
}

// ParsedFile represents all requests parsed from a single request file.
type ParsedFile struct {
	FilePath string
	Requests []*Request
}

// OutgoingRequest is the fully materialized request the pipeline produces.
// The body stays a stream as long as no stage needs its text.
type OutgoingRequest struct {
	Method  string
	URL     string
	Headers http.Header
	Body    *Body
}
