package restive

import (
	"net/http"
	"time"
)

// Response captures the outcome of executing one request. When Error is set
// the transport or body read failed and the other fields may be zero.
type Response struct {
	Request *Request

	Status     string
	StatusCode int
	Proto      string
	Headers    http.Header
	Body       []byte
	BodyString string
	Size       int64
	Duration   time.Duration

	Error error
}

// IsSuccess reports whether the response carries a 2xx status and no error.
func (r *Response) IsSuccess() bool {
	return r != nil && r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}
