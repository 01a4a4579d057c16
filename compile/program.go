// Package compile flattens an ast.Node tree into a linear Program of
// Instructions addressed by relative jump offsets, the way sheens'
// core.Spec is itself already a flat, offset-addressed machine (its
// Branches/Pattern/Guard steps) rather than a tree walker. Compiling
// to offsets instead of interpreting the tree directly is what makes
// chain() a pure array-concatenation operation (spec.md §5.1).
package compile

import "github.com/yarikc/composer/ast"

// Type discriminates the variants of Instruction.
type Type string

const (
	TypePush    Type = "push"
	TypePop     Type = "pop"
	TypeAction  Type = "action"
	TypeFunc    Type = "func"
	TypeLiteral Type = "literal"
	TypeTest    Type = "test"
	TypeChoice  Type = "choice"
	TypeLet     Type = "let"
	TypeExit    Type = "exit"
	TypePass    Type = "pass"
)

// Instruction is one step of a compiled Program. Next is the default
// relative jump to the following instruction (almost always 1); Then
// and Else are the choice instruction's two outgoing relative jumps;
// Catch is the relative jump a push frame installs for inspect() to
// use when unwinding.
type Instruction struct {
	Type Type `json:"type"`
	Path string `json:"path,omitempty"`

	Next  int `json:"next,omitempty"`
	Then  int `json:"then,omitempty"`
	Else  int `json:"else,omitempty"`
	Catch int `json:"catch,omitempty"`

	// action
	Name string `json:"name,omitempty"`

	// func
	Exec *ast.Exec `json:"exec,omitempty"`

	// literal
	Value interface{} `json:"value,omitempty"`

	// let
	Declarations map[string]interface{} `json:"declarations,omitempty"`

	// push: what kind of frame it installs.
	Frame string `json:"frame,omitempty"` // "catch" or "save"

	// push frame=save
	Field  string  `json:"field,omitempty"`
	Filter Program `json:"filter,omitempty"`

	// pop frame=save: how the saved value is applied to current params.
	//   "restore" - current params are replaced by the saved value
	//   "annotate" - current params become {params: saved, result: current}
	Mode string `json:"mode,omitempty"`
}

// Program is a compiled composition: a flat sequence of Instructions,
// each addressed by its index. Index 0 is always the entry point.
type Program []*Instruction

// Chain concatenates two programs. Every instruction's Next, Then,
// Else, and Catch are offsets relative to that instruction's own
// position, so concatenation alone is enough to make falling off the
// end of front land on back's first instruction: front's final
// instruction is compiled with Next == 1, and position
// len(front)-1 + 1 == len(front), the index back starts at once the
// two slices are joined. This is the one primitive spec.md §5.1 needs
// for sequence(); every other combinator is Chain plus a handful of
// new instructions.
func Chain(front, back Program) Program {
	if len(front) == 0 {
		return back
	}
	if len(back) == 0 {
		return front
	}
	out := make(Program, 0, len(front)+len(back))
	out = append(out, front...)
	out = append(out, back...)
	return out
}

// At returns the instruction at index i, or nil if i is outside the
// program.
func (p Program) At(i int) *Instruction {
	if i < 0 || i >= len(p) {
		return nil
	}
	return p[i]
}
