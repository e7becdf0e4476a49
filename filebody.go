package restive

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// TemplateOrder says when the variable resolver runs relative to the patch
// stages. Exactly one value is attached to a body at materialization time.
type TemplateOrder int

const (
	// TemplateOrderNone skips template resolution for the body entirely.
	TemplateOrderNone TemplateOrder = iota
	// TemplateOrderBeforePatch resolves template variables before patching.
	TemplateOrderBeforePatch
	// TemplateOrderAfterPatch resolves template variables after patching.
	TemplateOrderAfterPatch
)

func (o TemplateOrder) String() string {
	switch o {
	case TemplateOrderBeforePatch:
		return "before-patch"
	case TemplateOrderAfterPatch:
		return "after-patch"
	default:
		return "none"
	}
}

// templateDirective is the materializer-internal view of a template order:
// it distinguishes "nothing requested" from an explicit marker, and carries
// the "." forbid marker separately so conflicts can be detected.
type templateDirective struct {
	order    TemplateOrder
	explicit bool
	forbid   bool
}

// combineDirectives merges the directives of two body parts. A forbid marker
// clashes fatally with any explicit template marker; two explicit markers must
// agree on the order.
func combineDirectives(a, b templateDirective) (templateDirective, error) {
	if (a.forbid && b.explicit) || (b.forbid && a.explicit) {
		return templateDirective{}, ErrConflictingTemplateInstruction
	}
	if a.forbid || b.forbid {
		return templateDirective{forbid: true}, nil
	}
	if !a.explicit {
		return b, nil
	}
	if !b.explicit {
		return a, nil
	}
	if a.order != b.order {
		return templateDirective{}, fmt.Errorf("%w: %s vs %s", ErrConflictingTemplateOrder, a.order, b.order)
	}
	return a, nil
}

// finalize resolves the directive to the order the pipeline runs with. With
// no marker at all, a text body defaults to template-before-patch (inline
// bodies always get their variables resolved) while a streaming body stays
// untemplated.
func (d templateDirective) finalize(body *Body) TemplateOrder {
	if d.forbid {
		return TemplateOrderNone
	}
	if d.explicit {
		return d.order
	}
	if body.IsStream() {
		return TemplateOrderNone
	}
	return TemplateOrderBeforePatch
}

// fileIndicatorRe anchors on "<" followed by one of {space, @, j, x, .}. The
// optional marker token runs to the first whitespace; the remainder of the
// line is the file path.
var fileIndicatorRe = regexp.MustCompile(`^<(?:([@jx.]\S*)\s+|\s+)(.+?)\s*$`)

// fileIndicator is one parsed "< [marker] path" body line.
//
// Marker grammar:
//
//	indicator := "." | marker
//	marker    := prefix? "@" suffix?
//	prefix    := "j" | "x"            patch runs first, then template
//	suffix    := ("j"|"x")? encoding? presence of a suffix alone means
//	                                  template-before-patch
type fileIndicator struct {
	path      string
	encoding  string
	forbid    bool
	order     TemplateOrder
	needsText bool
}

// parseFileIndicator recognizes a file-indicator body line. The boolean is
// false when the line is not an indicator and must stay a literal body line.
func parseFileIndicator(line string) (fileIndicator, bool) {
	m := fileIndicatorRe.FindStringSubmatch(line)
	if m == nil {
		return fileIndicator{}, false
	}
	ind := fileIndicator{path: m[2]}
	marker := m[1]

	if marker == "" {
		return ind, true
	}
	if marker == "." {
		ind.forbid = true
		return ind, true
	}

	prefix, suffix, found := strings.Cut(marker, "@")
	if !found {
		return fileIndicator{}, false
	}
	switch prefix {
	case "":
		ind.order = TemplateOrderBeforePatch
	case "j", "x":
		ind.order = TemplateOrderAfterPatch
	default:
		return fileIndicator{}, false
	}
	if suffix != "" {
		if suffix[0] == 'j' || suffix[0] == 'x' {
			suffix = suffix[1:]
		}
		ind.encoding = suffix
	}

	// Any template or encoding request forces the file content into a string;
	// only a bare "<" or "<." indicator keeps the body streamable.
	ind.needsText = true
	return ind, true
}

func (ind fileIndicator) directive() templateDirective {
	if ind.forbid {
		return templateDirective{forbid: true}
	}
	return templateDirective{order: ind.order, explicit: true}
}

// bodyContent is the materializer output: the assembled body plus the
// template directive its markers requested.
type bodyContent struct {
	body      *Body
	directive templateDirective
}

// bodyPart is one line of a body under assembly: either a literal line or a
// resolved file indicator.
type bodyPart struct {
	literal   string
	indicator *fileIndicator
}

// materializeBody interprets file-indicator lines and assembles the request
// body. When no indicator requires text the result is a combined stream over
// literal segments and lazily-opened files; otherwise every part is read into
// one string. Multipart bodies join lines with CRLF, everything else with the
// platform line ending. An indicator whose file cannot be resolved is kept as
// a literal body line.
func materializeBody(bodyLines []string, contentType, baseDir string) (bodyContent, error) {
	lineEnding := platformEOL()
	if isMultipartContentType(contentType) {
		lineEnding = "\r\n"
		if extractBoundary(contentType) == "" {
			slog.Warn("materializeBody: multipart content type carries no boundary", "contentType", contentType)
		}
	}

	var parts []bodyPart
	directive := templateDirective{}
	needsText := false
	haveIndicator := false

	for _, line := range bodyLines {
		ind, ok := parseFileIndicator(line)
		if ok {
			resolved := resolveFilePath(ind.path, baseDir)
			if _, err := os.Stat(resolved); err != nil {
				slog.Debug("materializeBody: file indicator target not found, keeping literal line",
					"path", ind.path, "resolved", resolved)
				ok = false
			} else {
				ind.path = resolved
			}
		}
		if !ok {
			parts = append(parts, bodyPart{literal: line})
			continue
		}

		merged, err := combineDirectives(directive, ind.directive())
		if err != nil {
			return bodyContent{}, err
		}
		directive = merged
		needsText = needsText || ind.needsText
		haveIndicator = true
		indicator := ind
		parts = append(parts, bodyPart{indicator: &indicator})
	}

	if !haveIndicator {
		return bodyContent{body: TextBody(strings.Join(bodyLines, lineEnding)), directive: directive}, nil
	}

	if needsText {
		var sb strings.Builder
		for i, part := range parts {
			if i > 0 {
				sb.WriteString(lineEnding)
			}
			if part.indicator == nil {
				sb.WriteString(part.literal)
				continue
			}
			content, err := readFileWithEncoding(part.indicator.path, part.indicator.encoding)
			if err != nil {
				return bodyContent{}, err
			}
			sb.WriteString(content)
		}
		return bodyContent{body: TextBody(sb.String()), directive: directive}, nil
	}

	var readers []io.Reader
	for i, part := range parts {
		if i > 0 {
			readers = append(readers, strings.NewReader(lineEnding))
		}
		if part.indicator == nil {
			readers = append(readers, strings.NewReader(part.literal))
			continue
		}
		readers = append(readers, &lazyFileReader{path: part.indicator.path})
	}
	return bodyContent{body: StreamBody(io.MultiReader(readers...)), directive: directive}, nil
}

// readFileWithEncoding loads a file as a string, decoding through the named
// character encoding when one was requested. Unknown encoding names fall back
// to reading the raw bytes.
func readFileWithEncoding(path, encodingName string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open body file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if encodingName != "" && !isUTF8Name(encodingName) {
		enc, encErr := htmlindex.Get(encodingName)
		if encErr != nil {
			slog.Warn("readFileWithEncoding: unknown encoding, reading raw bytes",
				"encoding", encodingName, "path", path)
		} else {
			r = transform.NewReader(f, enc.NewDecoder())
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read body file %s: %w", path, err)
	}
	return string(data), nil
}

func isUTF8Name(name string) bool {
	switch strings.ToLower(name) {
	case "utf8", "utf-8":
		return true
	}
	return false
}

func platformEOL() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}
