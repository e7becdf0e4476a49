package restive

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

const graphQLRequestType = "GraphQL"

// operationNameRe extracts the optional operation name from a query or
// mutation document.
var operationNameRe = regexp.MustCompile(`^\s*(?:query|mutation)\s+([A-Za-z_][A-Za-z0-9_]*)`)

type graphQLPayload struct {
	Query         string          `json:"query"`
	OperationName string          `json:"operationName,omitempty"`
	Variables     json.RawMessage `json:"variables"`
}

// isGraphQLRequest reports whether the request-type header marks the body as
// a GraphQL document. The comparison is case-insensitive.
func isGraphQLRequest(headers http.Header, headerName string) bool {
	return strings.EqualFold(strings.TrimSpace(headers.Get(headerName)), graphQLRequestType)
}

// composeGraphQLBody splits body lines at the first blank line into a query
// section and an optional JSON variables section, materializes each section
// independently (so either may be a file indicator), and merges them into a
// single JSON payload. Explicit template markers from the two sections must
// agree.
func composeGraphQLBody(bodyLines []string, contentType, baseDir string, maxSize int64) (bodyContent, error) {
	queryLines, variableLines := splitGraphQLSections(bodyLines)

	queryContent, err := materializeBody(queryLines, contentType, baseDir)
	if err != nil {
		return bodyContent{}, fmt.Errorf("graphql query section: %w", err)
	}
	variablesContent, err := materializeBody(variableLines, contentType, baseDir)
	if err != nil {
		return bodyContent{}, fmt.Errorf("graphql variables section: %w", err)
	}

	directive, err := combineDirectives(queryContent.directive, variablesContent.directive)
	if err != nil {
		return bodyContent{}, err
	}

	queryText, err := queryContent.body.Materialize(maxSize)
	if err != nil {
		return bodyContent{}, fmt.Errorf("graphql query section: %w", err)
	}
	variablesText, err := variablesContent.body.Materialize(maxSize)
	if err != nil {
		return bodyContent{}, fmt.Errorf("graphql variables section: %w", err)
	}

	payload := graphQLPayload{Query: queryText, Variables: json.RawMessage("{}")}
	if m := operationNameRe.FindStringSubmatch(queryText); m != nil {
		payload.OperationName = m[1]
	}
	if trimmed := strings.TrimSpace(variablesText); trimmed != "" {
		if !json.Valid([]byte(trimmed)) {
			return bodyContent{}, fmt.Errorf("graphql variables section: %w", ErrInvalidJSONBody)
		}
		payload.Variables = json.RawMessage(trimmed)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return bodyContent{}, fmt.Errorf("failed to serialize graphql payload: %w", err)
	}
	return bodyContent{body: TextBody(string(data)), directive: directive}, nil
}

// splitGraphQLSections splits body lines at the first blank line. Everything
// before it is the query document, everything after it the variables JSON.
func splitGraphQLSections(bodyLines []string) (queryLines, variableLines []string) {
	for i, line := range bodyLines {
		if strings.TrimSpace(line) == "" {
			return bodyLines[:i], bodyLines[i+1:]
		}
	}
	return bodyLines, nil
}
