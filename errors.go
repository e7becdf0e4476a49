package restive

import "errors"

// Sentinel errors surfaced by the request pipeline. Call sites wrap these with
// fmt.Errorf("...: %w", err) to add context; callers test with errors.Is.
var (
	// ErrNoRequestLine is returned when request text contains no non-comment,
	// non-blank line to serve as the request line.
	ErrNoRequestLine = errors.New("no request line found")

	// ErrInvalidJSONBody is returned when a JSON patch is requested but the
	// body does not parse as JSON.
	ErrInvalidJSONBody = errors.New("body is not valid JSON")

	// ErrInvalidXMLBody is returned when an XML patch is requested but the
	// body does not parse as XML.
	ErrInvalidXMLBody = errors.New("body is not valid XML")

	// ErrConflictingTemplateOrder is returned when two parts of one body
	// request different non-None template orders (e.g. "j@" in one file
	// indicator and "@" in another).
	ErrConflictingTemplateOrder = errors.New("conflicting template order markers")

	// ErrConflictingTemplateInstruction is returned when a "." forbid marker
	// and an "@"-style template marker appear in the same body.
	ErrConflictingTemplateInstruction = errors.New("template forbid marker conflicts with template marker")

	// ErrCannotSetRootToPrimitive is returned when a patch rule addresses the
	// document root with a value that is not a JSON object.
	ErrCannotSetRootToPrimitive = errors.New("cannot replace document root with a non-object value")

	// ErrBodyTooLarge is returned when materializing a streamed body would
	// exceed the configured maximum buffer size.
	ErrBodyTooLarge = errors.New("body exceeds maximum buffered size")
)
