package ast

import "fmt"

// These are user errors (bad combinator arguments), not internal
// errors, each a distinct type the way sheens' core/errors.go gives
// SpecNotCompiled, UnknownNode, UncompiledAction, and BadBranching
// each their own type rather than sharing one generic error.

// InvalidArgument occurs when a combinator constructor rejects one of
// its arguments: wrong type, wrong arity, or a forbidden value.
type InvalidArgument struct {
	Combinator string
	Argument   interface{}
	Reason     string
}

func (e *InvalidArgument) Error() string {
	return e.Combinator + ": invalid argument (" + e.Reason + "): " + jsOrType(e.Argument)
}

// DuplicateAction occurs when merging attached actions finds two
// attachments sharing a name.
type DuplicateAction struct {
	Name string
}

func (e *DuplicateAction) Error() string {
	return `duplicate attached action "` + e.Name + `"`
}

// CannotEncode occurs when Encode is called on a composition that is
// not a single named action.
type CannotEncode struct {
	Reason string
}

func (e *CannotEncode) Error() string {
	return "cannot encode: " + e.Reason
}

func jsOrType(x interface{}) string {
	if s, ok := x.(string); ok {
		return s
	}
	return fmt.Sprintf("%#v", x)
}
