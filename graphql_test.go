package restive

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsGraphQLRequest(t *testing.T) {
	headers := make(http.Header)
	assert.False(t, isGraphQLRequest(headers, DefaultGraphQLHeader))

	headers.Set(DefaultGraphQLHeader, "GraphQL")
	assert.True(t, isGraphQLRequest(headers, DefaultGraphQLHeader))

	headers.Set(DefaultGraphQLHeader, "graphql")
	assert.True(t, isGraphQLRequest(headers, DefaultGraphQLHeader))

	headers.Set(DefaultGraphQLHeader, "REST")
	assert.False(t, isGraphQLRequest(headers, DefaultGraphQLHeader))
}

func TestSplitGraphQLSections(t *testing.T) {
	query, vars := splitGraphQLSections([]string{"query Q {", "  id", "}", "", `{"a":1}`})
	assert.Equal(t, []string{"query Q {", "  id", "}"}, query)
	assert.Equal(t, []string{`{"a":1}`}, vars)

	query, vars = splitGraphQLSections([]string{"query { id }"})
	assert.Equal(t, []string{"query { id }"}, query)
	assert.Nil(t, vars)
}

func TestComposeGraphQLBody(t *testing.T) {
	lines := []string{
		"query GetUser($id: ID!) {",
		"  user(id: $id) { name }",
		"}",
		"",
		`{"id": "u1"}`,
	}
	content, err := composeGraphQLBody(lines, "application/json", "", 0)
	require.NoError(t, err)

	var payload struct {
		Query         string          `json:"query"`
		OperationName string          `json:"operationName"`
		Variables     json.RawMessage `json:"variables"`
	}
	require.NoError(t, json.Unmarshal([]byte(content.body.Text()), &payload))
	assert.Contains(t, payload.Query, "user(id: $id)")
	assert.Equal(t, "GetUser", payload.OperationName)
	assert.JSONEq(t, `{"id":"u1"}`, string(payload.Variables))
}

func TestComposeGraphQLBodyDefaults(t *testing.T) {
	content, err := composeGraphQLBody([]string{"{ viewer { login } }"}, "application/json", "", 0)
	require.NoError(t, err)

	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(content.body.Text()), &payload))
	assert.JSONEq(t, `{}`, string(payload["variables"]))
	_, hasOperationName := payload["operationName"]
	assert.False(t, hasOperationName, "anonymous query should omit operationName")
}

func TestComposeGraphQLBodyInvalidVariables(t *testing.T) {
	_, err := composeGraphQLBody([]string{"query { id }", "", "{not json"}, "application/json", "", 0)
	require.ErrorIs(t, err, ErrInvalidJSONBody)
}

func TestComposeGraphQLBodyFromFiles(t *testing.T) {
	dir := t.TempDir()
	writeBodyFile(t, dir, "query.graphql", []byte("mutation AddItem { add { id } }"))
	writeBodyFile(t, dir, "vars.json", []byte(`{"n": 3}`))

	content, err := composeGraphQLBody([]string{"< query.graphql", "", "< vars.json"}, "application/json", dir, 0)
	require.NoError(t, err)

	var payload struct {
		Query         string          `json:"query"`
		OperationName string          `json:"operationName"`
		Variables     json.RawMessage `json:"variables"`
	}
	require.NoError(t, json.Unmarshal([]byte(content.body.Text()), &payload))
	assert.Equal(t, "mutation AddItem { add { id } }", payload.Query)
	assert.Equal(t, "AddItem", payload.OperationName)
	assert.JSONEq(t, `{"n":3}`, string(payload.Variables))
}

func TestComposeGraphQLBodyConflictingOrders(t *testing.T) {
	dir := t.TempDir()
	writeBodyFile(t, dir, "query.graphql", []byte("query { id }"))
	writeBodyFile(t, dir, "vars.json", []byte("{}"))

	_, err := composeGraphQLBody([]string{"<@ query.graphql", "", "<j@ vars.json"}, "application/json", dir, 0)
	require.ErrorIs(t, err, ErrConflictingTemplateOrder)
}

func TestComposeGraphQLBodyAgreeingExplicitOrder(t *testing.T) {
	dir := t.TempDir()
	writeBodyFile(t, dir, "query.graphql", []byte("query { id }"))

	content, err := composeGraphQLBody([]string{"<j@ query.graphql"}, "application/json", dir, 0)
	require.NoError(t, err)
	assert.Equal(t, TemplateOrderAfterPatch, content.directive.finalize(content.body))
}
