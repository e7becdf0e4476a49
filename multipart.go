package restive

import (
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// isMultipartContentType reports whether a Content-Type header describes a
// multipart body. Multipart bodies keep CRLF line endings when assembled so
// boundary delimiters stay wire-correct.
func isMultipartContentType(contentType string) bool {
	essence, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "multipart/")
	}
	return strings.HasPrefix(essence, "multipart/")
}

// extractBoundary returns the boundary parameter of a multipart Content-Type,
// or "" when none is declared.
func extractBoundary(contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["boundary"]
}

// resolveFilePath resolves a file-indicator path against the caller-supplied
// base directory, falling back to the working directory for relative paths
// when no base is given.
func resolveFilePath(contentPath, baseDir string) string {
	if filepath.IsAbs(contentPath) {
		return contentPath
	}
	if baseDir != "" {
		return filepath.Join(baseDir, contentPath)
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, contentPath)
	}
	return contentPath
}
