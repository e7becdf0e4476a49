package restive

import "net/http"

// Default header names and limits. All of them are configurable through
// Options.
const (
	DefaultJSONPatchHeader = "X-RestiveClient-JsonPatch"
	DefaultXMLPatchHeader  = "X-RestiveClient-XmlPatch"
	DefaultDebugHeader     = "X-RestiveClient-Patch-Debug"
	DefaultGraphQLHeader   = "X-Request-Type"

	// DefaultMaxStreamBufferSize caps how many bytes a streamed body may
	// occupy once a stage forces it into memory.
	DefaultMaxStreamBufferSize = 10 << 20
)

// Options is the immutable configuration the pipeline runs with.
type Options struct {
	JSONPatchEnabled bool
	XMLPatchEnabled  bool

	JSONPatchHeader string
	XMLPatchHeader  string
	DebugHeader     string

	// Debug records stage labels and surfaces them joined with " | " in the
	// debug trace header. When false that header is guaranteed absent.
	Debug bool

	MaxStreamBufferSize int64
}

// DefaultOptions returns the options the client starts from: both patch
// stages enabled, default header names, debug off.
func DefaultOptions() Options {
	return Options{
		JSONPatchEnabled:    true,
		XMLPatchEnabled:     true,
		JSONPatchHeader:     DefaultJSONPatchHeader,
		XMLPatchHeader:      DefaultXMLPatchHeader,
		DebugHeader:         DefaultDebugHeader,
		MaxStreamBufferSize: DefaultMaxStreamBufferSize,
	}
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client) error

// WithHTTPClient allows providing a custom http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) error {
		if hc == nil {
			c.httpClient = &http.Client{}
		} else {
			c.httpClient = hc
		}
		return nil
	}
}

// WithBaseURL sets a base URL relative request URLs resolve against.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) error {
		c.BaseURL = baseURL
		return nil
	}
}

// WithDefaultHeader adds a default header to be sent with every request.
func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) error {
		c.DefaultHeaders.Add(key, value)
		return nil
	}
}

// WithDefaultHeaders adds multiple default headers.
func WithDefaultHeaders(headers http.Header) ClientOption {
	return func(c *Client) error {
		for key, values := range headers {
			for _, value := range values {
				c.DefaultHeaders.Add(key, value)
			}
		}
		return nil
	}
}

// WithOptions replaces the pipeline options wholesale.
func WithOptions(opts Options) ClientOption {
	return func(c *Client) error {
		c.opts = opts
		return nil
	}
}

// WithResolver sets the variable resolver the pipeline calls for {{...}}
// placeholders. Without one, template stages pass the body through unchanged.
func WithResolver(resolve VariableResolver) ClientOption {
	return func(c *Client) error {
		c.resolver = resolve
		return nil
	}
}

// WithDebug toggles debug tracing of pipeline stages.
func WithDebug(enabled bool) ClientOption {
	return func(c *Client) error {
		c.opts.Debug = enabled
		return nil
	}
}
