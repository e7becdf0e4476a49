//go:build unit

package restive_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	restive "github.com/restiveclient/restive"
)

func TestMain(m *testing.M) {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(h))
	os.Exit(m.Run())
}

type capturedRequest struct {
	method  string
	path    string
	headers http.Header
	body    string
}

func newCaptureServer(t *testing.T) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.headers = r.Header.Clone()
		captured.body = string(body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestClientExecutePatchedJSONRequest(t *testing.T) {
	server, captured := newCaptureServer(t)

	client, err := restive.NewClient()
	require.NoError(t, err)

	req, err := restive.ParseRequestText("POST " + server.URL + "/users\n" +
		"Content-Type: application/json\n" +
		restive.DefaultJSONPatchHeader + ": $.user.name=Alice; $.active=true\n" +
		"\n" +
		`{"user":{"name":"placeholder"},"active":false}`)
	require.NoError(t, err)

	out, err := client.BuildRequest(context.Background(), req, "")
	require.NoError(t, err)

	resp, err := client.Execute(context.Background(), out)
	require.NoError(t, err)
	require.NoError(t, resp.Error)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.IsSuccess())

	assert.Equal(t, "POST", captured.method)
	assert.Equal(t, "/users", captured.path)
	assert.JSONEq(t, `{"user":{"name":"Alice"},"active":true}`, captured.body)
	assert.Empty(t, captured.headers.Get(restive.DefaultJSONPatchHeader),
		"patch directive header must not reach the wire")
	assert.Empty(t, captured.headers.Get(restive.DefaultDebugHeader))
}

func TestClientRepeatedDirectiveHeaderLines(t *testing.T) {
	server, captured := newCaptureServer(t)

	client, err := restive.NewClient()
	require.NoError(t, err)

	req, err := restive.ParseRequestText("POST " + server.URL + "/dup\n" +
		"Content-Type: application/json\n" +
		"Accept: text/plain\n" +
		"Accept: application/json\n" +
		restive.DefaultJSONPatchHeader + ": $.a=1\n" +
		restive.DefaultJSONPatchHeader + ": $.b=2\n" +
		"\n" +
		`{"a":0,"b":0}`)
	require.NoError(t, err)

	out, err := client.BuildRequest(context.Background(), req, "")
	require.NoError(t, err)
	_, err = client.Execute(context.Background(), out)
	require.NoError(t, err)

	assert.JSONEq(t, `{"a":1,"b":2}`, captured.body,
		"each directive header line contributes its own rules")
	assert.Empty(t, captured.headers.Values(restive.DefaultJSONPatchHeader))
	assert.Equal(t, "text/plain, application/json", captured.headers.Get("Accept"),
		"ordinary duplicate headers still comma-merge")
}

func TestClientExecuteXMLPatchedRequest(t *testing.T) {
	server, captured := newCaptureServer(t)

	client, err := restive.NewClient()
	require.NoError(t, err)

	req, err := restive.ParseRequestText("POST " + server.URL + "/orders\n" +
		"Content-Type: application/xml\n" +
		restive.DefaultXMLPatchHeader + ": //order/@status=submitted\n" +
		"\n" +
		`<order status="draft"><total>10</total></order>`)
	require.NoError(t, err)

	out, err := client.BuildRequest(context.Background(), req, "")
	require.NoError(t, err)
	_, err = client.Execute(context.Background(), out)
	require.NoError(t, err)

	assert.Contains(t, captured.body, `status="submitted"`)
	assert.Empty(t, captured.headers.Get(restive.DefaultXMLPatchHeader))
}

func TestClientResolvesURLAndHeaderVariables(t *testing.T) {
	server, captured := newCaptureServer(t)

	client, err := restive.NewClient(
		restive.WithResolver(restive.EnvResolver(map[string]string{
			"base":  server.URL,
			"token": "tok-1",
		}, "")),
	)
	require.NoError(t, err)

	req, err := restive.ParseRequestText("GET {{base}}/items\nAuthorization: Bearer {{token}}")
	require.NoError(t, err)

	out, err := client.BuildRequest(context.Background(), req, "")
	require.NoError(t, err)
	_, err = client.Execute(context.Background(), out)
	require.NoError(t, err)

	assert.Equal(t, "/items", captured.path)
	assert.Equal(t, "Bearer tok-1", captured.headers.Get("Authorization"))
}

func TestClientDebugTraceHeader(t *testing.T) {
	server, captured := newCaptureServer(t)

	client, err := restive.NewClient(restive.WithDebug(true))
	require.NoError(t, err)

	req, err := restive.ParseRequestText("POST " + server.URL + "/d\n" +
		"Content-Type: application/json\n" +
		restive.DefaultJSONPatchHeader + ": $.a=1\n" +
		"\n" +
		`{"a":0}`)
	require.NoError(t, err)

	out, err := client.BuildRequest(context.Background(), req, "")
	require.NoError(t, err)
	_, err = client.Execute(context.Background(), out)
	require.NoError(t, err)

	trace := captured.headers.Get(restive.DefaultDebugHeader)
	assert.Contains(t, trace, "json-patch:applying:1")
	assert.Contains(t, trace, "json-patch:complete")
}

func TestClientBaseURL(t *testing.T) {
	server, captured := newCaptureServer(t)

	client, err := restive.NewClient(restive.WithBaseURL(server.URL))
	require.NoError(t, err)

	req, err := restive.ParseRequestText("GET /relative/path")
	require.NoError(t, err)

	out, err := client.BuildRequest(context.Background(), req, "")
	require.NoError(t, err)
	_, err = client.Execute(context.Background(), out)
	require.NoError(t, err)

	assert.Equal(t, "/relative/path", captured.path)
}

func TestClientDefaultHeaders(t *testing.T) {
	server, captured := newCaptureServer(t)

	client, err := restive.NewClient(
		restive.WithDefaultHeader("X-Api-Key", "key-1"),
		restive.WithDefaultHeader("Accept", "application/json"),
	)
	require.NoError(t, err)

	req, err := restive.ParseRequestText("GET " + server.URL + "/h\nAccept: text/plain")
	require.NoError(t, err)

	out, err := client.BuildRequest(context.Background(), req, "")
	require.NoError(t, err)
	_, err = client.Execute(context.Background(), out)
	require.NoError(t, err)

	assert.Equal(t, "key-1", captured.headers.Get("X-Api-Key"))
	assert.Equal(t, "text/plain", captured.headers.Get("Accept"),
		"request headers override defaults")
}

func TestClientGraphQLRequest(t *testing.T) {
	server, captured := newCaptureServer(t)

	client, err := restive.NewClient()
	require.NoError(t, err)

	req, err := restive.ParseRequestText("POST " + server.URL + "/graphql\n" +
		"Content-Type: application/json\n" +
		restive.DefaultGraphQLHeader + ": GraphQL\n" +
		"\n" +
		"query GetUser($id: ID!) {\n" +
		"  user(id: $id) { name }\n" +
		"}\n" +
		"\n" +
		`{"id": "u1"}`)
	require.NoError(t, err)

	out, err := client.BuildRequest(context.Background(), req, "")
	require.NoError(t, err)
	_, err = client.Execute(context.Background(), out)
	require.NoError(t, err)

	assert.Empty(t, captured.headers.Get(restive.DefaultGraphQLHeader),
		"request-type header is consumed during composition")

	var payload struct {
		Query         string          `json:"query"`
		OperationName string          `json:"operationName"`
		Variables     json.RawMessage `json:"variables"`
	}
	require.NoError(t, json.Unmarshal([]byte(captured.body), &payload))
	assert.Equal(t, "GetUser", payload.OperationName)
	assert.Contains(t, payload.Query, "user(id: $id)")
	assert.JSONEq(t, `{"id":"u1"}`, string(payload.Variables))
}

func TestClientExecuteFile(t *testing.T) {
	server, _ := newCaptureServer(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payload.json"),
		[]byte(`{"from":"file"}`), 0o600))
	content := "### One\n" +
		"GET " + server.URL + "/one\n" +
		"\n" +
		"### Two\n" +
		"POST " + server.URL + "/two\n" +
		"Content-Type: application/json\n" +
		"\n" +
		"< payload.json\n"
	path := filepath.Join(dir, "run.http")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	client, err := restive.NewClient()
	require.NoError(t, err)

	responses, err := client.ExecuteFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, http.StatusOK, responses[0].StatusCode)
	assert.Equal(t, http.StatusOK, responses[1].StatusCode)
	assert.Equal(t, "One", responses[0].Request.Name)
	assert.Equal(t, "Two", responses[1].Request.Name)
	assert.JSONEq(t, `{"ok":true}`, responses[1].BodyString)
}

func TestClientExecuteFileAggregatesFailures(t *testing.T) {
	server, _ := newCaptureServer(t)

	dir := t.TempDir()
	content := "### Broken\n" +
		"POST http://127.0.0.1:1/unreachable\n" +
		"\n" +
		"### Works\n" +
		"GET " + server.URL + "/ok\n"
	path := filepath.Join(dir, "mixed.http")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	client, err := restive.NewClient()
	require.NoError(t, err)

	responses, err := client.ExecuteFile(context.Background(), path)
	require.Error(t, err)
	require.Len(t, responses, 2)
	assert.Error(t, responses[0].Error)
	assert.NoError(t, responses[1].Error)
	assert.Equal(t, http.StatusOK, responses[1].StatusCode)
}

func TestClientBuildRequestConflictingTemplateOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte("{}"), 0o600))

	client, err := restive.NewClient()
	require.NoError(t, err)

	req, err := restive.ParseRequestText("POST https://example.com/x\n" +
		"Content-Type: application/json\n" +
		"\n" +
		"<@ a.json\n" +
		"<j@ b.json")
	require.NoError(t, err)

	_, err = client.BuildRequest(context.Background(), req, dir)
	require.ErrorIs(t, err, restive.ErrConflictingTemplateOrder)
}
