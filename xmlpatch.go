package restive

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antchfx/xmlquery"
)

// applyXMLPatchRules applies an ordered rule list to an XML body. Each rule's
// resolved value is written into every node its XPath selects: attribute
// nodes get a new value, text nodes new character data, and any other node
// has its children replaced with a single text child. A rule matching zero
// nodes is a no-op. The patched document is serialized back to text after all
// rules ran.
func applyXMLPatchRules(
	ctx context.Context,
	body string,
	rules []PatchRule,
	resolve VariableResolver,
) (string, error) {
	doc, err := xmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidXMLBody, err)
	}

	for _, rule := range rules {
		raw := rule.RawValue
		if resolve != nil {
			raw, err = resolve(ctx, raw)
			if err != nil {
				return "", fmt.Errorf("failed to resolve value for patch path %q: %w", rule.Path, err)
			}
		}

		nodes, qerr := xmlquery.QueryAll(doc, rule.Path)
		if qerr != nil {
			slog.Debug("applyXMLPatchRules: skipping rule with unparseable path",
				"path", rule.Path, "error", qerr)
			continue
		}
		for _, node := range nodes {
			writeXMLNode(node, raw)
		}
	}

	return doc.OutputXML(false), nil
}

// writeXMLNode overwrites one matched node with the resolved value.
func writeXMLNode(node *xmlquery.Node, value string) {
	switch node.Type {
	case xmlquery.AttributeNode:
		setElementAttr(node.Parent, node.Data, value)
	case xmlquery.TextNode, xmlquery.CharDataNode:
		node.Data = value
	default:
		text := &xmlquery.Node{Type: xmlquery.TextNode, Data: value, Parent: node}
		node.FirstChild = text
		node.LastChild = text
	}
}

// setElementAttr sets an attribute value on an element, appending the
// attribute when it does not exist yet.
func setElementAttr(elem *xmlquery.Node, name, value string) {
	if elem == nil {
		return
	}
	for i := range elem.Attr {
		if elem.Attr[i].Name.Local == name {
			elem.Attr[i].Value = value
			return
		}
	}
	elem.Attr = append(elem.Attr, xmlquery.Attr{Name: xml.Name{Local: name}, Value: value})
}
