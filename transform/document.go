// Package transform rewrites innertube response documents. Every function
// is pure: the same input always produces the same output, and a document
// that cannot be understood is rejected rather than partially rewritten.
package transform

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
	"github.com/use-agent/tubeshim/models"
	"github.com/use-agent/tubeshim/route"
)

// Document is a response body edited in place. Nodes that are never
// visited stay raw and are written back byte for byte, so key order,
// number literals and string escapes outside the edited paths survive.
// A Document is only ever obtained through Parse, so holding one means the
// body was a JSON object.
type Document struct {
	route route.Route
	root  ast.Node
}

// Parse validates body and wraps it as the document of the given route.
// The top level must be a JSON object.
func Parse(kind route.Route, body []byte) (*Document, error) {
	if !sonic.Valid(body) {
		return nil, models.NewTransformError(
			models.ErrCodeMalformedDocument, kind.String(), "body is not valid JSON", nil,
		)
	}
	root := ast.NewRaw(string(body))
	if err := root.Check(); err != nil {
		return nil, models.NewTransformError(
			models.ErrCodeMalformedDocument, kind.String(), "body is not valid JSON", err,
		)
	}
	if t := root.TypeSafe(); t != ast.V_OBJECT {
		return nil, &models.TransformError{
			Code:    models.ErrCodeMissingContainer,
			Route:   kind.String(),
			Message: fmt.Sprintf("top level is %s, want object", kindOf(t)),
		}
	}
	return &Document{route: kind, root: root}, nil
}

// Bytes serializes the document. Untouched subtrees are copied verbatim.
func (d *Document) Bytes() ([]byte, error) {
	b, err := d.root.MarshalJSON()
	if err != nil {
		return nil, models.NewTransformError(
			models.ErrCodeMalformedDocument, d.route.String(), "re-encode document", err,
		)
	}
	return b, nil
}

// lookup follows sections (object keys and array indexes) from the root.
// The returned node points into the document; writing through it edits
// the document.
func (d *Document) lookup(sections ...interface{}) (*ast.Node, bool) {
	n := d.root.GetByPath(sections...)
	return n, n.Exists()
}

// Has reports whether something exists at sections.
func (d *Document) Has(sections ...interface{}) bool {
	_, ok := d.lookup(sections...)
	return ok
}

// array returns the array node at sections, if there is one.
func (d *Document) array(sections ...interface{}) (*ast.Node, bool) {
	n, ok := d.lookup(sections...)
	if !ok || n.TypeSafe() != ast.V_ARRAY {
		return nil, false
	}
	return n, true
}

// arrayLen counts the elements of the array at sections, or 0 when there
// is none. Lazy arrays are scanned to the end first.
func (d *Document) arrayLen(sections ...interface{}) int {
	n, ok := d.array(sections...)
	if !ok {
		return 0
	}
	items, err := n.ArrayUseNode()
	if err != nil {
		return 0
	}
	return len(items)
}

// requireObject fails with MISSING_CONTAINER unless sections resolve to an
// object.
func (d *Document) requireObject(sections ...interface{}) error {
	if n, ok := d.lookup(sections...); ok && n.TypeSafe() == ast.V_OBJECT {
		return nil
	}
	return d.missing(sections, "object not found")
}

// del removes a top-level key. Absent keys are ignored.
func (d *Document) del(key string) bool {
	ok, err := d.root.Unset(key)
	return ok && err == nil
}

func (d *Document) missing(sections []interface{}, msg string) *models.TransformError {
	return &models.TransformError{
		Code:    models.ErrCodeMissingContainer,
		Route:   d.route.String(),
		Path:    pathString(sections),
		Message: msg,
	}
}

// join returns a new section list; it never aliases base.
func join(base []interface{}, more ...interface{}) []interface{} {
	out := make([]interface{}, 0, len(base)+len(more))
	out = append(out, base...)
	return append(out, more...)
}

func pathString(sections []interface{}) string {
	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = fmt.Sprint(s)
	}
	return strings.Join(parts, ".")
}

func kindOf(t int) string {
	switch t {
	case ast.V_NULL:
		return "null"
	case ast.V_ARRAY:
		return "array"
	case ast.V_STRING:
		return "string"
	case ast.V_TRUE, ast.V_FALSE:
		return "bool"
	default:
		return "number"
	}
}
