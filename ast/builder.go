package ast

import "github.com/yarikc/composer/qname"

// canonicalizeOrInvalid wraps qname.Canonicalize, translating its
// *qname.InvalidName into the *InvalidArgument shape every other
// combinator constructor returns, so a caller never has to switch on
// two different error families for the same mistake.
func canonicalizeOrInvalid(combinator, raw string) (string, error) {
	name, err := qname.Canonicalize(raw)
	if err != nil {
		return "", &InvalidArgument{Combinator: combinator, Argument: raw, Reason: "not a qualified action name"}
	}
	return name, nil
}

// Task coerces x into a *Composition: nil becomes the empty sequence,
// a *Composition passes through, a string is canonicalized into an
// action node, and an Exec (or *Exec) is lifted into a function node.
// Anything else is an *InvalidArgument.
func Task(x Composable) (*Composition, error) {
	return asComposition("task", x)
}

// Action builds a single-action composition, canonicalizing name.
func Action(name string) (*Composition, error) {
	qualified, err := canonicalizeOrInvalid("action", name)
	if err != nil {
		return nil, err
	}
	return &Composition{Tree: &Node{Kind: KindAction, Name: qualified}}, nil
}

// Function builds a composition around an inline source fragment.
func Function(exec Exec) (*Composition, error) {
	if exec.Kind == "" {
		return nil, &InvalidArgument{Combinator: "function", Argument: exec, Reason: "exec.kind is required"}
	}
	return &Composition{Tree: &Node{Kind: KindFunction, Exec: &exec}}, nil
}

// Literal builds a composition that always returns v, ignoring its
// input params. v must be JSON-representable; a function, channel, or
// similar value is rejected rather than silently dropped.
func Literal(v interface{}) (*Composition, error) {
	if !jsonable(v) {
		return nil, &InvalidArgument{Combinator: "literal", Argument: v, Reason: "value is not JSON-representable"}
	}
	return &Composition{Tree: &Node{Kind: KindLiteral, Value: v}}, nil
}

// Value is an alias for Literal, matching the vocabulary spec.md uses
// when a composable position wants a constant rather than a task.
func Value(v interface{}) (*Composition, error) {
	return Literal(v)
}

func jsonable(v interface{}) bool {
	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		map[string]interface{}, []interface{}:
		return true
	default:
		return false
	}
}

// Sequence chains zero or more composables end to end, propagating
// each one's attached actions into the result. An empty Sequence is
// the identity composition.
func Sequence(items ...Composable) (*Composition, error) {
	seq := &Node{Kind: KindSequence}
	var attached []*Attachment
	for _, item := range items {
		c, err := asComposition("sequence", item)
		if err != nil {
			return nil, err
		}
		seq.Children = append(seq.Children, c.Tree)
		attached, err = mergeAttached(attached, c.Attached)
		if err != nil {
			return nil, err
		}
	}
	return &Composition{Tree: seq, Attached: attached}, nil
}

// Seq is Sequence's short name.
func Seq(items ...Composable) (*Composition, error) {
	return Sequence(items...)
}

// ifOption configures If, While, and DoWhile.
type ifOption struct {
	noSave bool
}

// Option is a functional option shared by the branching combinators.
type Option func(*ifOption)

// NoSave makes an if/while/dowhile carry its test's output forward
// instead of restoring the params saved before the test ran. The
// save-frame is still pushed and popped around the test; only the
// restore on pop is turned off.
func NoSave() Option {
	return func(o *ifOption) { o.noSave = true }
}

func collectOptions(opts []Option) *ifOption {
	o := &ifOption{}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// If builds a conditional: test's result truthiness selects consequent
// or alternate.
func If(test, consequent, alternate Composable, opts ...Option) (*Composition, error) {
	tc, err := asComposition("if", test)
	if err != nil {
		return nil, err
	}
	cc, err := asComposition("if", consequent)
	if err != nil {
		return nil, err
	}
	ac, err := asComposition("if", alternate)
	if err != nil {
		return nil, err
	}
	attached, err := mergeAttached(nil, tc.Attached)
	if err != nil {
		return nil, err
	}
	attached, err = mergeAttached(attached, cc.Attached)
	if err != nil {
		return nil, err
	}
	attached, err = mergeAttached(attached, ac.Attached)
	if err != nil {
		return nil, err
	}
	o := collectOptions(opts)
	return &Composition{
		Tree: &Node{
			Kind:       KindIf,
			Test:       tc.Tree,
			Consequent: cc.Tree,
			Alternate:  ac.Tree,
			Options:    &Options{NoSave: o.noSave},
		},
		Attached: attached,
	}, nil
}

// While loops body while test's result is truthy, evaluating test
// first on every iteration.
func While(test, body Composable, opts ...Option) (*Composition, error) {
	return loop(KindWhile, test, body, opts)
}

// DoWhile runs body once unconditionally, then loops it while test's
// result stays truthy.
func DoWhile(body, test Composable, opts ...Option) (*Composition, error) {
	return loop(KindDoWhile, test, body, opts)
}

func loop(kind Kind, test, body Composable, opts []Option) (*Composition, error) {
	name := string(kind)
	tc, err := asComposition(name, test)
	if err != nil {
		return nil, err
	}
	bc, err := asComposition(name, body)
	if err != nil {
		return nil, err
	}
	attached, err := mergeAttached(nil, tc.Attached)
	if err != nil {
		return nil, err
	}
	attached, err = mergeAttached(attached, bc.Attached)
	if err != nil {
		return nil, err
	}
	o := collectOptions(opts)
	return &Composition{
		Tree: &Node{
			Kind:    kind,
			Test:    tc.Tree,
			Body:    bc.Tree,
			Options: &Options{NoSave: o.noSave},
		},
		Attached: attached,
	}, nil
}

// Try runs body; if it fails, handler runs with the error available
// in params.error.
func Try(body, handler Composable) (*Composition, error) {
	bc, err := asComposition("try", body)
	if err != nil {
		return nil, err
	}
	hc, err := asComposition("try", handler)
	if err != nil {
		return nil, err
	}
	attached, err := mergeAttached(nil, bc.Attached)
	if err != nil {
		return nil, err
	}
	attached, err = mergeAttached(attached, hc.Attached)
	if err != nil {
		return nil, err
	}
	return &Composition{
		Tree:     &Node{Kind: KindTry, Body: bc.Tree, Handler: hc.Tree},
		Attached: attached,
	}, nil
}

// Finally runs body, then unconditionally runs finalizer whether body
// succeeded or failed, re-raising body's error (if any) afterward.
func Finally(body, finalizer Composable) (*Composition, error) {
	bc, err := asComposition("finally", body)
	if err != nil {
		return nil, err
	}
	fc, err := asComposition("finally", finalizer)
	if err != nil {
		return nil, err
	}
	attached, err := mergeAttached(nil, bc.Attached)
	if err != nil {
		return nil, err
	}
	attached, err = mergeAttached(attached, fc.Attached)
	if err != nil {
		return nil, err
	}
	return &Composition{
		Tree:     &Node{Kind: KindFinally, Body: bc.Tree, Finalizer: fc.Tree},
		Attached: attached,
	}, nil
}

// Let introduces decls as a new lexical frame around body. Any name in
// decls that body's inline functions assign to is written back into
// this frame rather than escaping it, per spec.md §3.2's let scoping.
func Let(decls map[string]interface{}, body Composable) (*Composition, error) {
	if len(decls) == 0 {
		return nil, &InvalidArgument{Combinator: "let", Argument: decls, Reason: "declarations must be non-empty"}
	}
	for k, v := range decls {
		if !jsonable(v) {
			return nil, &InvalidArgument{Combinator: "let", Argument: map[string]interface{}{k: v}, Reason: "declaration value is not JSON-representable"}
		}
	}
	bc, err := asComposition("let", body)
	if err != nil {
		return nil, err
	}
	declsCopy := make(map[string]interface{}, len(decls))
	for k, v := range decls {
		declsCopy[k] = v
	}
	return &Composition{
		Tree:     &Node{Kind: KindLet, Declarations: declsCopy, Body: bc.Tree},
		Attached: bc.Attached,
	}, nil
}

// RetainOption configures Retain. It returns an error so FilterWith
// can surface a bad filter composable the same way every other
// combinator constructor does.
type RetainOption func(*Options) error

// Field names the single params field retain should save instead of
// the whole params object.
func Field(name string) RetainOption {
	return func(o *Options) error {
		o.Field = name
		return nil
	}
}

// Catch tells retain to produce its {params, result} pair even when
// body failed (the failure then sits under result), not only on
// success.
func Catch() RetainOption {
	return func(o *Options) error {
		o.Catch = true
		return nil
	}
}

// FilterWith restricts what push saves, per spec.md §3.2's
// "options.filter": filter runs over the current params before they
// are pushed, and only its result is retained.
func FilterWith(filter Composable) RetainOption {
	return func(o *Options) error {
		c, err := asComposition("retain", filter)
		if err != nil {
			return err
		}
		o.Filter = c.Tree
		return nil
	}
}

// Retain runs body under a push/pop pair: params as they were before
// body ran are saved, and after body finishes the result is
// {params: saved, result: body's output}.
func Retain(body Composable, opts ...RetainOption) (*Composition, error) {
	bc, err := asComposition("retain", body)
	if err != nil {
		return nil, err
	}
	o := &Options{}
	for _, fn := range opts {
		if err := fn(o); err != nil {
			return nil, err
		}
	}
	return &Composition{
		Tree:     &Node{Kind: KindRetain, Body: bc.Tree, Options: o},
		Attached: bc.Attached,
	}, nil
}

// repeatGuardSource is the count/while guard spec.md §4.B's repeat
// desugaring names: fn(() => count-- > 0). It compares the current
// count and decrements it on every check, the failing one included,
// so count ends at -1 once the loop exits.
const repeatGuardSource = `// repeat:guard
var c = env.count;
env.count = c - 1;
return {value: c > 0};`

// Repeat runs body n times in sequence, n >= 0, desugaring to
// let({count: n}, while(guard, body)) per spec.md §4.B rather than
// unrolling n copies of body's tree: compiling body once avoids both
// the FSM-size blowup of n copies and the spurious DuplicateAction a
// shared attachment would otherwise trip when the copies are merged.
func Repeat(n int, body Composable) (*Composition, error) {
	if n < 0 {
		return nil, &InvalidArgument{Combinator: "repeat", Argument: n, Reason: "count must be >= 0"}
	}
	bc, err := asComposition("repeat", body)
	if err != nil {
		return nil, err
	}
	guard, err := Function(Exec{Kind: "goja", Code: repeatGuardSource})
	if err != nil {
		return nil, err
	}
	loop, err := While(guard, bc)
	if err != nil {
		return nil, err
	}
	return Let(map[string]interface{}{"count": n}, loop)
}

// retrySeedSource wraps the original request params in a {value,
// params} envelope before the loop starts, so the loop body can always
// assume the same shape coming in, on the first attempt and every
// retry alike.
const retrySeedSource = `// retry:seed
return {value: true, params: params};`

// retryUnwrapSource undoes retrySeedSource/retryDecideSource's
// envelope at the top of each attempt, handing retain the bare params
// it is meant to save and replay.
const retryUnwrapSource = `// retry:unwrap
return params.params;`

// retryDecideSource inspects retain's {params, result} pair (see
// compileRetain's "annotate" pop) and either re-wraps the original
// params for another attempt or the final result for return, per
// spec.md §4.B: "on each attempt, save input params ... execute body".
const retryDecideSource = `// retry:decide
var failed = params.result && typeof params.result === "object" && params.result.error !== undefined;
if (failed && env.count > 0) {
  env.count = env.count - 1;
  return {value: true, params: params.params};
}
return {value: false, params: params.result};`

// retryTestSource is dowhile's test slot for retry: the decision was
// already made by retryDecideSource at the end of the body, so the
// test only has to pass it through unchanged.
const retryTestSource = `// retry:test
return params;`

// retryFinishSource strips the envelope off the loop's final value
// once it has exited, leaving retry's own result in place of the
// {value, params} wrapper.
const retryFinishSource = `// retry:finish
return params.params;`

// Retry runs body, and on failure retries it up to n more times before
// letting the last failure propagate, desugaring per spec.md §4.B to
// let({count: n}, seq(seed, dowhile(seq(unwrap, retain(body, catch),
// decide), test), finish)) rather than nesting n copies of try. Nesting try means every attempt after the
// first would run body on the previous attempt's {error: ...} params
// (inspect() truncates params to that shape before a handler runs),
// not the original request; this desugaring instead saves the original
// params once per attempt via retain and replays exactly that.
func Retry(n int, body Composable) (*Composition, error) {
	if n < 0 {
		return nil, &InvalidArgument{Combinator: "retry", Argument: n, Reason: "count must be >= 0"}
	}
	bc, err := asComposition("retry", body)
	if err != nil {
		return nil, err
	}
	attempt, err := Retain(bc, Catch())
	if err != nil {
		return nil, err
	}
	unwrap, err := Function(Exec{Kind: "goja", Code: retryUnwrapSource})
	if err != nil {
		return nil, err
	}
	decide, err := Function(Exec{Kind: "goja", Code: retryDecideSource})
	if err != nil {
		return nil, err
	}
	loopBody, err := Sequence(unwrap, attempt, decide)
	if err != nil {
		return nil, err
	}
	test, err := Function(Exec{Kind: "goja", Code: retryTestSource})
	if err != nil {
		return nil, err
	}
	loop, err := DoWhile(loopBody, test)
	if err != nil {
		return nil, err
	}
	seed, err := Function(Exec{Kind: "goja", Code: retrySeedSource})
	if err != nil {
		return nil, err
	}
	finish, err := Function(Exec{Kind: "goja", Code: retryFinishSource})
	if err != nil {
		return nil, err
	}
	wrapped, err := Sequence(seed, loop, finish)
	if err != nil {
		return nil, err
	}
	return Let(map[string]interface{}{"count": n}, wrapped)
}

// Named wraps c under a single action node bound to qualifiedName, and
// attaches c's original tree as a "composition" attachment under that
// same name, so Encode later has something to compile.
func Named(qualifiedName string, c *Composition) (*Composition, error) {
	name, err := canonicalizeOrInvalid("named", qualifiedName)
	if err != nil {
		return nil, err
	}
	self := &Attachment{
		Name:   name,
		Action: &ActionRecord{Composition: c.Tree.Copy()},
	}
	attached, err := mergeAttached(c.Attached, []*Attachment{self})
	if err != nil {
		return nil, err
	}
	return &Composition{
		Tree:     &Node{Kind: KindAction, Name: name},
		Attached: attached,
	}, nil
}
