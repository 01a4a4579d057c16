// Package bundle turns a composition into the deployable document
// shape spec.md §6.1 describes: a single named action whose attached
// "composition" records have been compiled away into a conductor
// bundle an action host can actually run.
//
// It sits above ast, compile, and conductor rather than inside any of
// them, because ast cannot import compile (compile imports ast for
// node types) and Encode needs both.
package bundle

import (
	"encoding/json"

	"github.com/yarikc/composer/ast"
	"github.com/yarikc/composer/compile"
)

// ConductorExecKind is the Exec.Kind a compiled composition's
// deployed action record carries. A host recognizes this kind
// specially: rather than handing Code to a scripting Interpreter, it
// unmarshals Code into a compile.Program and drives it with
// conductor.Step, invoking whatever actions that Program names.
const ConductorExecKind = "conductor"

// Document is the serialized form spec.md §6.1 names: a named root
// action plus every action it and its descendants need deployed
// alongside it.
type Document struct {
	Name    string            `json:"name"`
	Actions []*ast.Attachment `json:"actions"`
}

// Encode compiles c into a Document. If name is non-empty, c is first
// wrapped with ast.Named(name, c); otherwise c's own tree must already
// be a single named action (the result of an earlier Named call) or
// Encode fails with ast.CannotEncode.
func Encode(c *ast.Composition, name string) (*Document, error) {
	if name != "" {
		wrapped, err := ast.Named(name, c)
		if err != nil {
			return nil, err
		}
		c = wrapped
	}
	named := false
	for _, at := range c.Attached {
		if at.Name == c.Tree.Name {
			named = true
		}
	}
	if c.Tree.Kind != ast.KindAction || !named {
		return nil, &ast.CannotEncode{Reason: "composition is not a single named action"}
	}

	actions := make([]*ast.Attachment, 0, len(c.Attached))
	for _, at := range c.Attached {
		compiled, err := compileAttachment(at)
		if err != nil {
			return nil, err
		}
		actions = append(actions, compiled)
	}

	return &Document{Name: c.Tree.Name, Actions: actions}, nil
}

// compileAttachment replaces at's uncompiled Composition tree (if
// any) with a conductor bundle, preserving the original tree as an
// annotation the way spec.md §6.1 describes for "debugging and
// redeployment".
func compileAttachment(at *ast.Attachment) (*ast.Attachment, error) {
	if at.Action == nil || at.Action.Composition == nil {
		return at, nil
	}
	original := at.Action.Composition
	prog, err := compile.Compile(original, at.Name)
	if err != nil {
		return nil, err
	}
	code, err := json.Marshal(prog)
	if err != nil {
		return nil, &ast.CannotEncode{Reason: "compiled program is not JSON-representable: " + err.Error()}
	}
	cp := at.Copy()
	cp.Action.Composition = nil
	cp.Action.Exec = &ast.Exec{Kind: ConductorExecKind, Code: string(code)}
	cp.Action.Annotations = append(cp.Action.Annotations, ast.Annotation{Key: "conductor", Value: original})
	return cp, nil
}
