package ast

// mergeAttached merges b into a, rejecting any name collision. The
// merge is what propagates attachments from a child composition into
// its parent (spec.md §3.2 "Attached-action propagation"); it is also
// what Named uses to add its own attachment, which is why it is the
// one path spec.md §9 says reliably enforces uniqueness.
func mergeAttached(a, b []*Attachment) ([]*Attachment, error) {
	if len(b) == 0 {
		return a, nil
	}
	seen := make(map[string]bool, len(a))
	for _, at := range a {
		seen[at.Name] = true
	}
	acc := a
	for _, at := range b {
		if seen[at.Name] {
			return nil, &DuplicateAction{Name: at.Name}
		}
		seen[at.Name] = true
		acc = append(acc, at)
	}
	return acc, nil
}

// Composable is anything Task can coerce into a Composition: a
// *Composition, a qualified-action string, nil, or an Exec (inline
// source elevated to a function node).
type Composable interface{}

// asComposition is the coercion behind Task and every combinator's
// composable arguments. It never panics: an argument it cannot coerce
// is reported as an *InvalidArgument naming combinator.
func asComposition(combinator string, x Composable) (*Composition, error) {
	switch v := x.(type) {
	case nil:
		return &Composition{Tree: &Node{Kind: KindSequence}}, nil
	case *Composition:
		return v, nil
	case string:
		name, err := canonicalizeOrInvalid(combinator, v)
		if err != nil {
			return nil, err
		}
		return &Composition{Tree: &Node{Kind: KindAction, Name: name}}, nil
	case Exec:
		return &Composition{Tree: &Node{Kind: KindFunction, Exec: &v}}, nil
	case *Exec:
		return &Composition{Tree: &Node{Kind: KindFunction, Exec: v}}, nil
	default:
		return nil, &InvalidArgument{Combinator: combinator, Argument: x, Reason: "not a composable"}
	}
}
