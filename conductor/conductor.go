// Package conductor interprets a compile.Program one step at a time,
// the way sheens' crew.Machine interprets a core.Spec one message at a
// time: each call to Step runs as many local instructions as it can
// and then either finishes or hands back a Resume token describing
// exactly where to pick up once a remote action's result is in hand.
//
// A composition never blocks on a remote call inside this package.
// Whatever hosts Step (see the host package) is the one that actually
// invokes an action and feeds its result back into the next Step
// call; Step itself only ever touches local functions, branching, and
// frame bookkeeping.
package conductor

import (
	"context"
	"fmt"

	"github.com/yarikc/composer/ast"
	"github.com/yarikc/composer/compile"
	"github.com/yarikc/composer/internal/value"
)

// Interpreter runs an inline source fragment against params and the
// current lexical environment, returning the fragment's result params
// and any write-backs to let-bound names. Implementations are keyed by
// ast.Exec.Kind in a Registry (see interpreters/goja for the one this
// repository ships).
type Interpreter interface {
	Exec(ctx context.Context, exec *ast.Exec, params map[string]interface{}, env map[string]interface{}) (result map[string]interface{}, writes map[string]interface{}, err error)
}

// Registry maps an Exec.Kind to the Interpreter that understands it.
type Registry map[string]Interpreter

// Frame is one entry of the conductor's stack, serialized as part of a
// Resume token. Kind is "catch" (inspect() target), "save" (retain's
// push/pop, optionally also an inspect() target when Options.Catch),
// or "env" (a let's lexical scope).
type Frame struct {
	Kind   string                 `json:"kind"`
	PushPC int                    `json:"pushPC"`
	Catch  int                    `json:"catch,omitempty"`
	Saved  interface{}            `json:"saved,omitempty"`
	Field  string                 `json:"field,omitempty"`
	Env    map[string]interface{} `json:"env,omitempty"`
}

// Resume is the externalized continuation spec.md §5.2 describes: a
// program counter plus the frame stack, both JSON-serializable with no
// cyclic references, suitable for a caller to persist between one
// action invocation and the next.
type Resume struct {
	State int      `json:"state"`
	Stack []*Frame `json:"stack,omitempty"`
}

// Invoke names the action a Step call wants its caller to run next,
// and the params to run it with.
type Invoke struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params"`
}

// StepResult is the result of one call to Step: either the composition has
// finished (Done, with Params holding its outcome), or it needs an
// action invoked (Invoke set, with Resume describing where to
// continue once that action's result is available).
type StepResult struct {
	Done   bool                   `json:"done"`
	Params map[string]interface{} `json:"params,omitempty"`
	Invoke *Invoke                `json:"invoke,omitempty"`
	Resume *Resume                `json:"resume,omitempty"`
}

// maxLocalSteps bounds how many local instructions a single Step call
// will run before giving up, guarding against a malformed program
// whose jumps loop without ever reaching an action or the end.
const maxLocalSteps = 100000

// Step runs prog starting from resume (or from the top, if resume is
// nil) with params as the current value in hand, until it must invoke
// a remote action or the program ends.
func Step(ctx context.Context, prog compile.Program, interpreters Registry, resume *Resume, params map[string]interface{}) (*StepResult, error) {
	pc := 0
	var stack []*Frame
	if resume != nil {
		pc = resume.State
		stack = resume.Stack
	}

	cur := params
	if isError(cur) {
		var done *StepResult
		stack, pc, done = inspectOrDone(stack, cur)
		if done != nil {
			return done, nil
		}
	}

	for i := 0; i < maxLocalSteps; i++ {
		if pc == len(prog) {
			return &StepResult{Done: true, Params: cur}, nil
		}
		if pc < 0 || pc > len(prog) {
			return nil, &BadResume{State: pc}
		}
		instr := prog[pc]

		switch instr.Type {
		case compile.TypeAction:
			return &StepResult{
				Invoke: &Invoke{Name: instr.Name, Params: cur},
				Resume: &Resume{State: pc + instr.Next, Stack: stack},
			}, nil

		case compile.TypeFunc:
			interp := interpreters[instr.Exec.Kind]
			if interp == nil {
				return nil, &NoInterpreter{Kind: instr.Exec.Kind}
			}
			env := mergeEnv(stack)
			result, writes, err := interp.Exec(ctx, instr.Exec, cur, env)
			if err != nil {
				cur = errorParams(err)
			} else {
				applyWrites(stack, writes)
				cur = result
			}
			if isError(cur) {
				var done *StepResult
				stack, pc, done = inspectOrDone(stack, cur)
				if done != nil {
					return done, nil
				}
				continue
			}
			pc += instr.Next

		case compile.TypeLiteral:
			cp, err := value.DeepCopy(instr.Value)
			if err != nil {
				return nil, err
			}
			if m, ok := value.AsObject(cp); ok {
				cur = m
			} else {
				cur = map[string]interface{}{"value": cp}
			}
			if isError(cur) {
				var done *StepResult
				stack, pc, done = inspectOrDone(stack, cur)
				if done != nil {
					return done, nil
				}
				continue
			}
			pc += instr.Next

		case compile.TypeChoice:
			if truthy(cur) {
				pc += instr.Then
			} else {
				pc += instr.Else
			}

		case compile.TypePush:
			saved, err := snapshot(ctx, instr, interpreters, cur)
			if err != nil {
				return nil, err
			}
			frame := &Frame{Kind: instr.Frame, PushPC: pc, Catch: instr.Catch, Saved: saved, Field: instr.Field}
			stack = append(stack, frame)
			pc += instr.Next

		case compile.TypePop:
			if len(stack) == 0 {
				return nil, &InternalError{Reason: "stack underflow at " + instr.Path}
			}
			frame := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cur = applyPop(instr, frame, cur)
			pc += instr.Next

		case compile.TypeLet:
			env, err := declareEnv(instr.Declarations)
			if err != nil {
				return nil, err
			}
			stack = append(stack, &Frame{Kind: "env", PushPC: pc, Env: env})
			pc += instr.Next

		case compile.TypeExit:
			if len(stack) == 0 {
				return nil, &InternalError{Reason: "stack underflow at " + instr.Path}
			}
			stack = stack[:len(stack)-1]
			pc += instr.Next

		case compile.TypePass:
			if isError(cur) {
				var done *StepResult
				stack, pc, done = inspectOrDone(stack, cur)
				if done != nil {
					return done, nil
				}
				continue
			}
			pc += instr.Next

		default:
			return nil, &InternalError{Reason: "unknown instruction type " + string(instr.Type)}
		}
	}
	return nil, &StepBudgetExceeded{}
}

// snapshot computes what a push instruction saves: instr.Filter's
// output if retain was given a filter (spec.md §3.2's
// "options.filter"), instr.Field's value if retain was given a field,
// or cur itself otherwise. A filter is expected to be a pure local
// transform; one that tries to suspend on a remote action is an
// InternalError rather than something Step can honor mid-push.
func snapshot(ctx context.Context, instr *compile.Instruction, interpreters Registry, cur map[string]interface{}) (interface{}, error) {
	if len(instr.Filter) > 0 {
		res, err := Step(ctx, instr.Filter, interpreters, nil, cur)
		if err != nil {
			return nil, err
		}
		if !res.Done {
			return nil, &InternalError{Reason: "retain filter at " + instr.Path + " tried to invoke an action"}
		}
		return value.DeepCopy(res.Params)
	}
	if instr.Field != "" {
		if v, ok := cur[instr.Field]; ok {
			return value.DeepCopy(v)
		}
		return nil, nil
	}
	return value.DeepCopy(cur)
}

func applyPop(instr *compile.Instruction, frame *Frame, cur map[string]interface{}) map[string]interface{} {
	switch instr.Mode {
	case "restore":
		if m, ok := value.AsObject(frame.Saved); ok {
			return m
		}
		return cur
	case "annotate":
		return map[string]interface{}{"params": frame.Saved, "result": cur}
	default:
		return cur
	}
}

func declareEnv(decls map[string]interface{}) (map[string]interface{}, error) {
	env := make(map[string]interface{}, len(decls))
	for k, v := range decls {
		cp, err := value.DeepCopy(v)
		if err != nil {
			return nil, err
		}
		env[k] = cp
	}
	return env, nil
}

func mergeEnv(stack []*Frame) map[string]interface{} {
	env := map[string]interface{}{}
	for _, f := range stack {
		if f.Kind == "env" {
			for k, v := range f.Env {
				env[k] = v
			}
		}
	}
	return env
}

// applyWrites writes each name back into the topmost frame that
// declares it, per spec.md §4.D. Names are resolved independently: a
// function that writes to both an outer let's x and an inner let's y
// must see both write-backs land, not just the one in the first env
// frame examined.
func applyWrites(stack []*Frame, writes map[string]interface{}) {
	for k, v := range writes {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].Kind != "env" {
				continue
			}
			if _, declared := stack[i].Env[k]; declared {
				stack[i].Env[k] = v
				break
			}
		}
	}
}

// inspect unwinds stack to the nearest catchable frame (one with
// Catch > 0), discarding every frame above it. It leaves the
// catchable frame itself on the stack - the instruction it jumps to is
// expected to pop it. It returns found=false if no such frame exists.
func inspect(stack []*Frame) (target int, remaining []*Frame, found bool) {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Catch > 0 {
			return stack[i].PushPC + stack[i].Catch, stack[:i+1], true
		}
	}
	return 0, nil, false
}

// inspectOrDone is spec §4.D's "Then inspect()", called once cur is
// already known to carry an error field: it unwinds stack to the
// nearest catch frame and returns where execution resumes, or, if no
// catch frame remains, the StepResult the caller should return
// immediately with the error as the composition's final outcome.
func inspectOrDone(stack []*Frame, cur map[string]interface{}) (newStack []*Frame, pc int, done *StepResult) {
	target, newStack, found := inspect(stack)
	if !found {
		return nil, 0, &StepResult{Done: true, Params: cur}
	}
	return newStack, target, nil
}

func isError(params map[string]interface{}) bool {
	if params == nil {
		return false
	}
	e, ok := params["error"]
	return ok && e != nil
}

func errorParams(err error) map[string]interface{} {
	_, message := EncodeError(err)
	return map[string]interface{}{"error": message}
}

// truthy mirrors the loose truthiness a composition's test functions
// are expected to produce: an explicit "value" field wins if present,
// otherwise a non-empty params object counts as true.
func truthy(params map[string]interface{}) bool {
	if v, ok := params["value"]; ok {
		return isTruthy(v)
	}
	return len(params) > 0
}

func isTruthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case map[string]interface{}:
		return len(t) > 0
	case []interface{}:
		return len(t) > 0
	default:
		return true
	}
}

// NoInterpreter occurs when a func instruction names an Exec.Kind with
// no registered Interpreter.
type NoInterpreter struct {
	Kind string
}

func (e *NoInterpreter) Error() string {
	return fmt.Sprintf("conductor: no interpreter registered for exec kind %q", e.Kind)
}

// StepBudgetExceeded occurs when a single Step call runs more than
// maxLocalSteps local instructions without reaching an action or the
// end of the program, almost certainly indicating a jump that loops
// forever without ever invoking anything.
type StepBudgetExceeded struct{}

func (e *StepBudgetExceeded) Error() string {
	return "conductor: exceeded local step budget without reaching an action or program end"
}

// InternalError covers the faults spec.md §7 attributes to the
// conductor itself rather than to a caller: an FSM instruction Step
// does not recognize, or a pop/exit running with an empty frame stack.
// Either one means the compiled program does not have the shape Step
// assumes, which is always a defect in compile or in a hand-built
// Program, never something a caller's input can trigger.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return "conductor: internal error: " + e.Reason
}

// BadResume occurs when a Resume's program counter points outside the
// bounds of the program it is resuming, which means the resume token
// was corrupted, stale against a program that has since changed, or
// otherwise never produced by a prior call to Step.
type BadResume struct {
	State int
}

func (e *BadResume) Error() string {
	return fmt.Sprintf("conductor: malformed resume: state %d is out of range", e.State)
}

// ThrownValue wraps whatever value an inline function raised,
// preserving its shape so EncodeError's fallback chain can read
// through to a .error or .message field instead of only ever seeing a
// stringified Go error. Interpreters (see interpreters/goja) construct
// this when a script throws something other than a plain Go error.
type ThrownValue struct {
	Value interface{}
}

func (e *ThrownValue) Error() string {
	return thrownMessage(e.Value)
}

func thrownMessage(v interface{}) string {
	if m, ok := v.(map[string]interface{}); ok {
		if s, ok := m["error"].(string); ok && s != "" {
			return s
		}
		if s, ok := m["message"].(string); ok && s != "" {
			return s
		}
	}
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	if v == nil {
		return "inline function raised"
	}
	return fmt.Sprintf("%v", v)
}

// EncodeError coerces err into the {code, error} shape spec.md §7
// funnels every runtime error through: code defaults to 500, except a
// *BadResume which reports 400. The message falls back through
// ThrownValue's .error/.message chain when err carries one, or err's
// own Error() string otherwise.
func EncodeError(err error) (code int, message string) {
	if err == nil {
		return 500, "internal error"
	}
	if _, ok := err.(*BadResume); ok {
		return 400, err.Error()
	}
	return 500, err.Error()
}
