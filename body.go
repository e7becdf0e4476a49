package restive

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Body is the text/stream duality of a request body. A body starts out either
// as an owned string or as a lazily-read stream; the stream form is promoted
// to a string exactly once when a stage needs text access, and never demoted
// back. This keeps large file bodies off the heap until a patch or template
// stage actually requires their content.
type Body struct {
	text      string
	stream    io.Reader
	streaming bool
}

// TextBody returns a materialized body owning the given string.
func TextBody(text string) *Body {
	return &Body{text: text}
}

// StreamBody returns a streaming body wrapping the given reader.
func StreamBody(r io.Reader) *Body {
	return &Body{stream: r, streaming: true}
}

// IsStream reports whether the body is still in its streaming form.
func (b *Body) IsStream() bool {
	return b != nil && b.streaming
}

// Text returns the materialized content. It is only meaningful after
// Materialize has run (or for bodies created with TextBody).
func (b *Body) Text() string {
	if b == nil {
		return ""
	}
	return b.text
}

// Reader returns a reader over the body content regardless of its form.
func (b *Body) Reader() io.Reader {
	if b == nil {
		return strings.NewReader("")
	}
	if b.streaming {
		return b.stream
	}
	return strings.NewReader(b.text)
}

// Materialize promotes a streaming body to its string form, reading at most
// maxSize bytes (no limit when maxSize <= 0). Once promoted the body stays a
// string for the rest of the pipeline.
func (b *Body) Materialize(maxSize int64) (string, error) {
	if b == nil {
		return "", nil
	}
	if !b.streaming {
		return b.text, nil
	}
	r := b.stream
	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to materialize body stream: %w", err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return "", fmt.Errorf("%w (%d bytes allowed)", ErrBodyTooLarge, maxSize)
	}
	b.text = string(data)
	b.stream = nil
	b.streaming = false
	return b.text, nil
}

// lazyFileReader opens its file on first read so a combined stream touches the
// filesystem only when the body is actually consumed.
type lazyFileReader struct {
	path string
	file *os.File
	done bool
}

func (r *lazyFileReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	if r.file == nil {
		f, err := os.Open(r.path)
		if err != nil {
			r.done = true
			return 0, fmt.Errorf("failed to open body file %s: %w", r.path, err)
		}
		r.file = f
	}
	n, err := r.file.Read(p)
	if err == io.EOF {
		r.done = true
		_ = r.file.Close()
	}
	return n, err
}
