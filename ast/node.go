// Package ast builds the combinator tree described in spec.md §3.2:
// a discriminated node tree (action, function, literal, sequence, if,
// while, dowhile, try, finally, let, retain) plus a list of "attached
// actions" that must be deployed alongside a composition.
//
// There is no single Go interface type for the tree the way a tagged
// union works in a dynamically-typed host language; instead Node
// carries a Kind discriminator and only the fields that Kind uses are
// populated, mirroring how sheens' core.Node/core.Branch represent
// their own discriminated pieces (an ActionSource xor a Branches, a
// Pattern xor a Guard).
package ast

import "github.com/yarikc/composer/internal/value"

// Kind discriminates the variants of Node.
type Kind string

const (
	KindAction   Kind = "action"
	KindFunction Kind = "function"
	KindLiteral  Kind = "literal"
	KindSequence Kind = "sequence"
	KindIf       Kind = "if"
	KindWhile    Kind = "while"
	KindDoWhile  Kind = "dowhile"
	KindTry      Kind = "try"
	KindFinally  Kind = "finally"
	KindLet      Kind = "let"
	KindRetain   Kind = "retain"
)

// Exec names an inline source fragment and the interpreter that
// understands it. Kind is an interpreter name (e.g. "goja"); Code is
// opaque to this package.
type Exec struct {
	Kind string `json:"kind"`
	Code string `json:"code"`
}

// Options carries the per-node switches spec.md §3.2 attaches to if,
// while, and dowhile (NoSave), and to retain (Field, Catch, Filter).
type Options struct {
	NoSave bool   `json:"nosave,omitempty"`
	Field  string `json:"field,omitempty"`
	Catch  bool   `json:"catch,omitempty"`
	Filter *Node  `json:"filter,omitempty"`
}

// Node is one node of a composition's AST.
type Node struct {
	Kind Kind `json:"type"`

	// action
	Name string `json:"name,omitempty"`

	// function
	Exec *Exec `json:"exec,omitempty"`

	// literal
	Value interface{} `json:"value,omitempty"`

	// sequence
	Children []*Node `json:"children,omitempty"`

	// if / while / dowhile
	Test       *Node `json:"test,omitempty"`
	Consequent *Node `json:"consequent,omitempty"`
	Alternate  *Node `json:"alternate,omitempty"`

	// while / dowhile / try / finally / retain share Body
	Body *Node `json:"body,omitempty"`

	// try
	Handler *Node `json:"handler,omitempty"`

	// finally
	Finalizer *Node `json:"finalizer,omitempty"`

	// let
	Declarations map[string]interface{} `json:"declarations,omitempty"`

	Options *Options `json:"options,omitempty"`
}

// Annotation is a {key, value} pair riding along on a deployable
// action record. Encode uses the "conductor" key to preserve an
// attachment's original composition tree once that tree has been
// compiled away into Exec.
type Annotation struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// ActionRecord is what spec.md §6.1 means by a document's
// "actions[i].action": either an inline-source action (Exec set,
// Composition nil) or, before Encode runs, a still-uncompiled
// sub-composition (Composition set, Exec nil). Encode replaces every
// Composition with a compiled Exec and records the original tree as
// an annotation.
type ActionRecord struct {
	Exec        *Exec        `json:"exec,omitempty"`
	Composition *Node        `json:"composition,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Attachment is a deployable action record carried alongside a
// composition (spec.md §3.2, §6.1).
type Attachment struct {
	Name   string        `json:"name"`
	Action *ActionRecord `json:"action"`
}

// Copy makes a deep copy of an Attachment.
func (a *Attachment) Copy() *Attachment {
	if a == nil {
		return nil
	}
	cp := &Attachment{Name: a.Name}
	if a.Action != nil {
		ar := *a.Action
		ar.Composition = a.Action.Composition.Copy()
		if a.Action.Annotations != nil {
			ar.Annotations = append([]Annotation(nil), a.Action.Annotations...)
		}
		cp.Action = &ar
	}
	return cp
}

// Composition is an AST node plus the attachments it has collected
// from itself and its descendants.
type Composition struct {
	Tree     *Node
	Attached []*Attachment
}

// Copy makes a deep copy of a Node.
func (n *Node) Copy() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if v, err := value.DeepCopy(n.Value); err == nil {
		cp.Value = v
	}
	cp.Children = copyNodes(n.Children)
	cp.Test = n.Test.Copy()
	cp.Consequent = n.Consequent.Copy()
	cp.Alternate = n.Alternate.Copy()
	cp.Body = n.Body.Copy()
	cp.Handler = n.Handler.Copy()
	cp.Finalizer = n.Finalizer.Copy()
	if n.Declarations != nil {
		decls := make(map[string]interface{}, len(n.Declarations))
		for k, v := range n.Declarations {
			if c, err := value.DeepCopy(v); err == nil {
				v = c
			}
			decls[k] = v
		}
		cp.Declarations = decls
	}
	if n.Options != nil {
		opts := *n.Options
		opts.Filter = n.Options.Filter.Copy()
		cp.Options = &opts
	}
	return &cp
}

func copyNodes(ns []*Node) []*Node {
	if ns == nil {
		return nil
	}
	acc := make([]*Node, len(ns))
	for i, n := range ns {
		acc[i] = n.Copy()
	}
	return acc
}
