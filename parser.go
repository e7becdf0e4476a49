package restive

import (
	"fmt"
	"os"
	"strings"
)

// ParseRequestText parses a single raw request description (request line,
// headers, body) into a Request. It fails with ErrNoRequestLine when the text
// contains no non-comment, non-blank line.
func ParseRequestText(text string) (*Request, error) {
	return parseRequestLines(splitLines(text), "", 1)
}

// ParseFile reads a request file and parses every "###"-separated request
// block it contains.
func ParseFile(filePath string) (*ParsedFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file %s: %w", filePath, err)
	}

	parsed := &ParsedFile{FilePath: filePath}
	lines := splitLines(string(data))

	blockStart := 0
	blockName := ""
	flush := func(end int) error {
		block := lines[blockStart:end]
		if isBlankBlock(block) {
			return nil
		}
		req, err := parseRequestLines(block, filePath, blockStart+1)
		if err != nil {
			return fmt.Errorf("request starting at line %d: %w", blockStart+1, err)
		}
		req.Name = blockName
		parsed.Requests = append(parsed.Requests, req)
		return nil
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, requestSeparator) {
			continue
		}
		if err := flush(i); err != nil {
			return nil, err
		}
		blockStart = i + 1
		blockName = strings.TrimSpace(strings.TrimPrefix(trimmed, requestSeparator))
	}
	if err := flush(len(lines)); err != nil {
		return nil, err
	}

	if len(parsed.Requests) == 0 {
		return nil, fmt.Errorf("file %s: %w", filePath, ErrNoRequestLine)
	}
	return parsed, nil
}

// splitLines splits raw request text into lines, tolerating both CRLF and LF
// terminators.
func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func isBlankBlock(lines []string) bool {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !isCommentLine(trimmed) {
			return false
		}
	}
	return true
}

// parseRequestLines runs the Url -> Header -> Body state machine over the
// lines of one request block. Header lines are trimmed; body lines are kept
// verbatim because body formatting (multipart boundaries, indentation) is
// significant.
func parseRequestLines(lines []string, filePath string, startLine int) (*Request, error) {
	req := &Request{Headers: make(map[string][]string), FilePath: filePath, LineNumber: startLine}
	var headerLines []string
	var bodyLines []string
	state := stateURL

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch state {
		case stateURL:
			if req.RawURLString == "" {
				if trimmed == "" || isCommentLine(trimmed) {
					continue
				}
				parseRequestLine(req, trimmed)
				continue
			}
			// Query-string continuations stick to the request line.
			if isQueryContinuation(trimmed) {
				req.RawURLString += trimmed
				continue
			}
			if trimmed == "" {
				// Blank line straight after the request line: no headers,
				// the blank line itself is consumed.
				state = stateBody
				continue
			}
			if isCommentLine(trimmed) {
				continue
			}
			state = stateHeader
			headerLines = append(headerLines, trimmed)

		case stateHeader:
			if trimmed == "" {
				state = stateBody
				continue
			}
			if isCommentLine(trimmed) {
				continue
			}
			headerLines = append(headerLines, trimmed)

		case stateBody:
			bodyLines = append(bodyLines, line)
		}
	}

	if req.RawURLString == "" {
		return nil, ErrNoRequestLine
	}

	req.Headers = foldHeaderLines(headerLines)
	req.BodyLines = trimTrailingBlankLines(bodyLines)
	return req, nil
}

// parseRequestLine fills method, URL and HTTP version from the request line.
// The method defaults to GET when absent; a trailing HTTP/x.y suffix is
// stripped off the URL.
func parseRequestLine(req *Request, line string) {
	rest := line
	req.Method = "GET"

	if fields := strings.Fields(line); len(fields) > 1 && isKnownMethod(fields[0]) {
		req.Method = strings.ToUpper(fields[0])
		rest = strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	}

	req.RawURLString, req.HTTPVersion = extractURLAndVersion(rest)
}

// extractURLAndVersion splits a request-line remainder that may carry an HTTP
// version suffix, e.g. "https://example.com/a b HTTP/1.1".
func extractURLAndVersion(urlAndVersion string) (urlStr, httpVersion string) {
	parts := strings.Split(urlAndVersion, " ")
	if len(parts) > 1 && strings.HasPrefix(parts[len(parts)-1], "HTTP/") {
		return strings.TrimSpace(strings.Join(parts[:len(parts)-1], " ")), parts[len(parts)-1]
	}
	return strings.TrimSpace(urlAndVersion), ""
}

// trimTrailingBlankLines drops line-split artifacts from the end of a body
// while preserving interior blank lines.
func trimTrailingBlankLines(lines []string) []string {
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[:end]
}
