package restive

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var jsonNumberRe = regexp.MustCompile(`^[+-]?\d+(\.\d+)?([eE][+-]?\d+)?$`)

// applyJSONPatchRules applies an ordered rule list to a JSON body. Each rule's
// raw value is resolved through the injected resolver, coerced, and written to
// every location its JSONPath selects. The body must be valid JSON before any
// rule runs. Rules whose path fails to parse are skipped like malformed header
// chunks; rules that cannot be applied to the document abort the whole run so
// no partially patched body escapes.
func applyJSONPatchRules(
	ctx context.Context,
	body string,
	rules []PatchRule,
	resolve VariableResolver,
) (string, error) {
	doc, err := oj.ParseString(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidJSONBody, err)
	}

	for _, rule := range rules {
		raw := rule.RawValue
		if resolve != nil {
			raw, err = resolve(ctx, raw)
			if err != nil {
				return "", fmt.Errorf("failed to resolve value for patch path %q: %w", rule.Path, err)
			}
		}
		value := coercePatchValue(raw)

		expr, perr := jp.ParseString(rule.Path)
		if perr != nil {
			slog.Debug("applyJSONPatchRules: skipping rule with unparseable path",
				"path", rule.Path, "error", perr)
			continue
		}

		if isRootExpr(expr) {
			obj, isObject := value.(map[string]any)
			if !isObject {
				return "", fmt.Errorf("%w (path %q)", ErrCannotSetRootToPrimitive, rule.Path)
			}
			doc = obj
			continue
		}

		if serr := expr.Set(doc, value); serr != nil {
			return "", fmt.Errorf("failed to apply JSON patch rule %q: %w", rule.Path, serr)
		}
	}

	return oj.JSON(doc), nil
}

// isRootExpr reports whether a JSONPath addresses the document root itself.
func isRootExpr(expr jp.Expr) bool {
	if len(expr) == 0 {
		return true
	}
	if len(expr) == 1 {
		if _, isRoot := expr[0].(jp.Root); isRoot {
			return true
		}
	}
	return false
}

// coercePatchValue turns resolved rule text into a typed value. JSON literal
// forms (objects, arrays, booleans, null, numbers) parse as JSON; a fully
// quoted string loses its quotes; anything else stays a raw string.
func coercePatchValue(raw string) any {
	v := strings.TrimSpace(raw)
	switch v {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}

	if looksLikeJSONContainer(v) {
		if parsed, err := oj.ParseString(v); err == nil {
			return parsed
		}
	}

	if jsonNumberRe.MatchString(v) {
		if n, err := strconv.ParseInt(strings.TrimPrefix(v, "+"), 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}

	if len(v) >= 2 {
		if (v[0] == '\'' && v[len(v)-1] == '\'') || (v[0] == '"' && v[len(v)-1] == '"') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func looksLikeJSONContainer(v string) bool {
	return (strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}")) ||
		(strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]"))
}
