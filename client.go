package restive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Client drives request text through the materialization pipeline and issues
// the resulting requests. The pipeline itself never touches the network; the
// client is the outer shell that does.
type Client struct {
	httpClient     *http.Client
	BaseURL        string
	DefaultHeaders http.Header

	opts     Options
	resolver VariableResolver
}

// NewClient creates a new Client, applying any given options over the
// defaults.
func NewClient(options ...ClientOption) (*Client, error) {
	c := &Client{
		httpClient:     &http.Client{},
		DefaultHeaders: make(http.Header),
		opts:           DefaultOptions(),
	}
	for _, option := range options {
		if err := option(c); err != nil {
			return nil, fmt.Errorf("failed to apply client option: %w", err)
		}
	}
	return c, nil
}

// BuildRequest turns one parsed request into an outgoing request: the body is
// materialized (or composed, for GraphQL requests), template variables in the
// URL and headers are resolved, and the template/patch stage sequence runs
// over the body. baseDir anchors relative file-indicator paths; when empty it
// falls back to the directory of the request's source file.
func (c *Client) BuildRequest(ctx context.Context, req *Request, baseDir string) (*OutgoingRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("cannot build a nil request")
	}
	if baseDir == "" && req.FilePath != "" {
		baseDir = filepath.Dir(req.FilePath)
	}

	headers := cloneHeaders(req.Headers)
	mergeDuplicateHeaders(headers, c.isDirectiveHeader)
	contentType := headers.Get("Content-Type")

	var content bodyContent
	var err error
	switch {
	case isGraphQLRequest(headers, DefaultGraphQLHeader):
		headers.Del(DefaultGraphQLHeader)
		content, err = composeGraphQLBody(req.BodyLines, contentType, baseDir, c.opts.MaxStreamBufferSize)
	case len(req.BodyLines) > 0:
		content, err = materializeBody(req.BodyLines, contentType, baseDir)
	}
	if err != nil {
		return nil, err
	}

	out := &OutgoingRequest{
		Method:  req.Method,
		URL:     req.RawURLString,
		Headers: headers,
		Body:    content.body,
	}

	order := TemplateOrderNone
	if content.body != nil {
		order = content.directive.finalize(content.body)
	}

	if err := c.resolveRequestLine(ctx, out); err != nil {
		return nil, err
	}

	slog.Debug("building request",
		"method", out.Method, "url", out.URL, "templateOrder", order.String())
	if err := newPipeline(c.opts, c.resolver).run(ctx, out, order); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveRequestLine resolves template variables in the URL and in header
// values. Patch directive headers are left untouched so their rule values
// resolve inside the patch stage instead, against the stage's own timing.
func (c *Client) resolveRequestLine(ctx context.Context, out *OutgoingRequest) error {
	if c.resolver == nil {
		return nil
	}
	resolvedURL, err := c.resolver(ctx, out.URL)
	if err != nil {
		return fmt.Errorf("failed to resolve variables in URL %s: %w", out.URL, err)
	}
	out.URL = resolvedURL

	for key, values := range out.Headers {
		if c.isDirectiveHeader(key) {
			continue
		}
		resolvedValues := make([]string, len(values))
		for i, value := range values {
			resolved, rerr := c.resolver(ctx, value)
			if rerr != nil {
				return fmt.Errorf("failed to resolve variables in header %s: %w", key, rerr)
			}
			resolvedValues[i] = resolved
		}
		out.Headers[key] = resolvedValues
	}
	return nil
}

func (c *Client) isDirectiveHeader(key string) bool {
	return strings.EqualFold(key, c.opts.JSONPatchHeader) ||
		strings.EqualFold(key, c.opts.XMLPatchHeader) ||
		strings.EqualFold(key, c.opts.DebugHeader)
}

// Execute sends one built request and collects the response. Transport and
// body-read failures are reported on the returned Response rather than as a
// second return value, so a multi-request run can keep going.
func (c *Client) Execute(ctx context.Context, out *OutgoingRequest) (*Response, error) {
	if out == nil {
		return nil, fmt.Errorf("cannot execute a nil request")
	}
	targetURL, err := c.resolveTargetURL(out.URL)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, out.Method, targetURL, out.Body.Reader())
	if err != nil {
		return nil, fmt.Errorf("failed to create http request for %s %s: %w", out.Method, targetURL, err)
	}
	for key, values := range c.DefaultHeaders {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	for key, values := range out.Headers {
		httpReq.Header.Del(key)
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	slog.Debug("executing request", "method", out.Method, "url", targetURL)
	response := &Response{}
	start := time.Now()
	httpResp, doErr := c.httpClient.Do(httpReq)
	response.Duration = time.Since(start)
	if doErr != nil {
		response.Error = fmt.Errorf("http request failed: %w", doErr)
		return response, nil
	}
	defer func() { _ = httpResp.Body.Close() }()

	response.Status = httpResp.Status
	response.StatusCode = httpResp.StatusCode
	response.Proto = httpResp.Proto
	response.Headers = httpResp.Header

	bodyBytes, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil {
		response.Error = fmt.Errorf("failed to read response body: %w", readErr)
		return response, nil
	}
	response.Body = bodyBytes
	response.BodyString = string(bodyBytes)
	response.Size = int64(len(bodyBytes))
	return response, nil
}

// resolveTargetURL resolves a possibly relative request URL against the
// configured BaseURL.
func (c *Client) resolveTargetURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %s: %w", raw, err)
	}
	if parsed.IsAbs() || c.BaseURL == "" {
		return parsed.String(), nil
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %s: %w", c.BaseURL, err)
	}
	return base.ResolveReference(parsed).String(), nil
}

// ExecuteFile parses a request file, then builds and executes every request
// in it in order. Failures are aggregated per request; responses for the
// requests that did succeed still come back alongside the combined error.
func (c *Client) ExecuteFile(ctx context.Context, requestFilePath string) ([]*Response, error) {
	parsedFile, err := ParseFile(requestFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse request file %s: %w", requestFilePath, err)
	}
	slog.Debug("executing request file",
		"path", requestFilePath, "requests", len(parsedFile.Requests))

	baseDir := filepath.Dir(requestFilePath)
	responses := make([]*Response, len(parsedFile.Requests))
	var multiErr *multierror.Error

	for i, req := range parsedFile.Requests {
		out, buildErr := c.BuildRequest(ctx, req, baseDir)
		if buildErr != nil {
			responses[i] = &Response{Request: req, Error: buildErr}
			multiErr = multierror.Append(multiErr, fmt.Errorf(
				"request %d (%s %s) failed to build: %w", i+1, req.Method, req.RawURLString, buildErr))
			continue
		}

		resp, execErr := c.Execute(ctx, out)
		if execErr != nil {
			resp = &Response{Error: execErr}
			multiErr = multierror.Append(multiErr, fmt.Errorf(
				"request %d (%s %s) failed: %w", i+1, req.Method, out.URL, execErr))
		} else if resp.Error != nil {
			multiErr = multierror.Append(multiErr, fmt.Errorf(
				"request %d (%s %s) resulted in error: %w", i+1, req.Method, out.URL, resp.Error))
		}
		resp.Request = req
		responses[i] = resp
	}
	return responses, multiErr.ErrorOrNil()
}

func cloneHeaders(h http.Header) http.Header {
	cloned := make(http.Header, len(h))
	for key, values := range h {
		cloned[key] = append([]string(nil), values...)
	}
	return cloned
}
