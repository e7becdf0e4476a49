package restive

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
)

// pipeline sequences the template and patch stages over one outgoing request:
// template-before-patch, JSON patch, XML patch, template-after-patch. Each
// stage decides independently whether it applies; skipped stages are no-ops.
// A pipeline instance serves exactly one request.
type pipeline struct {
	opts    Options
	resolve VariableResolver
	trace   []string
}

func newPipeline(opts Options, resolve VariableResolver) *pipeline {
	return &pipeline{opts: opts, resolve: resolve}
}

// record notes a stage label for the debug trace.
func (p *pipeline) record(label string) {
	slog.Debug("pipeline stage", "label", label)
	if p.opts.Debug {
		p.trace = append(p.trace, label)
	}
}

// run executes the stage sequence in place on req. Whatever happens, the
// directive headers never reach the wire; the debug header is stripped and,
// in debug mode, replaced with the joined stage trace.
func (p *pipeline) run(ctx context.Context, req *OutgoingRequest, order TemplateOrder) error {
	if order == TemplateOrderBeforePatch {
		if err := p.runTemplateStage(ctx, req, "template-before-patch"); err != nil {
			return err
		}
	}
	if err := p.runJSONPatchStage(ctx, req); err != nil {
		return err
	}
	if err := p.runXMLPatchStage(ctx, req); err != nil {
		return err
	}
	if order == TemplateOrderAfterPatch {
		if err := p.runTemplateStage(ctx, req, "template-after-patch"); err != nil {
			return err
		}
	}

	req.Headers.Del(p.opts.DebugHeader)
	if p.opts.Debug && len(p.trace) > 0 {
		req.Headers.Set(p.opts.DebugHeader, strings.Join(p.trace, " | "))
	}
	return nil
}

func (p *pipeline) runTemplateStage(ctx context.Context, req *OutgoingRequest, label string) error {
	if p.resolve == nil {
		p.record(label + ":skipped-no-resolver")
		return nil
	}
	if req.Body == nil {
		p.record(label + ":skipped-no-body")
		return nil
	}
	p.record(label)
	text, err := req.Body.Materialize(p.opts.MaxStreamBufferSize)
	if err != nil {
		return err
	}
	resolved, err := p.resolve(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to resolve template variables in body: %w", err)
	}
	req.Body = TextBody(resolved)
	return nil
}

func (p *pipeline) runJSONPatchStage(ctx context.Context, req *OutgoingRequest) error {
	values := headerValues(req.Headers, p.opts.JSONPatchHeader)
	// The directive header is consumed here whether or not the stage runs.
	defer req.Headers.Del(p.opts.JSONPatchHeader)

	if !p.opts.JSONPatchEnabled {
		p.record("json-patch:skipped-disabled")
		return nil
	}
	if len(values) == 0 {
		p.record("json-patch:skipped-no-header")
		return nil
	}
	contentType := req.Headers.Get("Content-Type")
	if !isJSONContentType(contentType) {
		p.record("json-patch:skipped-content-type:" + contentType)
		return nil
	}
	if req.Body == nil {
		p.record("json-patch:skipped-no-body")
		return nil
	}
	rules := ParsePatchRules(values...)
	if len(rules) == 0 {
		p.record("json-patch:skipped-no-rules")
		return nil
	}

	p.record(fmt.Sprintf("json-patch:applying:%d", len(rules)))
	text, err := req.Body.Materialize(p.opts.MaxStreamBufferSize)
	if err != nil {
		return err
	}
	patched, err := applyJSONPatchRules(ctx, text, rules, p.resolve)
	if err != nil {
		return err
	}
	req.Body = TextBody(patched)
	p.record("json-patch:complete")
	return nil
}

func (p *pipeline) runXMLPatchStage(ctx context.Context, req *OutgoingRequest) error {
	values := headerValues(req.Headers, p.opts.XMLPatchHeader)
	defer req.Headers.Del(p.opts.XMLPatchHeader)

	if !p.opts.XMLPatchEnabled {
		p.record("xml-patch:skipped-disabled")
		return nil
	}
	if len(values) == 0 {
		p.record("xml-patch:skipped-no-header")
		return nil
	}
	contentType := req.Headers.Get("Content-Type")
	if !isXMLContentType(contentType) {
		p.record("xml-patch:skipped-content-type:" + contentType)
		return nil
	}
	if req.Body == nil {
		p.record("xml-patch:skipped-no-body")
		return nil
	}
	rules := ParsePatchRules(values...)
	if len(rules) == 0 {
		p.record("xml-patch:skipped-no-rules")
		return nil
	}

	p.record(fmt.Sprintf("xml-patch:applying:%d", len(rules)))
	text, err := req.Body.Materialize(p.opts.MaxStreamBufferSize)
	if err != nil {
		return err
	}
	patched, err := applyXMLPatchRules(ctx, text, rules, p.resolve)
	if err != nil {
		return err
	}
	req.Body = TextBody(patched)
	p.record("xml-patch:complete")
	return nil
}

// isJSONContentType gates the JSON patch stage on the content type essence.
// JSON Patch documents (RFC 6902 media types) are deliberately excluded so a
// patch payload is never itself patched.
func isJSONContentType(contentType string) bool {
	essence, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch essence {
	case "application/json-patch+json", "application/json-patch-json":
		return false
	}
	return essence == "application/json" || strings.HasSuffix(essence, "+json")
}

// isXMLContentType gates the XML patch stage, with the same exclusion for
// patch-document media types.
func isXMLContentType(contentType string) bool {
	essence, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if essence == "application/xml-patch+xml" {
		return false
	}
	return essence == "application/xml" || essence == "text/xml" || strings.HasSuffix(essence, "+xml")
}
