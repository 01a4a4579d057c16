package compile

import (
	"fmt"

	"github.com/yarikc/composer/ast"
)

// Compile flattens node into a Program. path is a dotted trail of
// combinator names used only to label instructions for tracing; it has
// no effect on jump arithmetic.
func Compile(node *ast.Node, path string) (Program, error) {
	if node == nil {
		return nil, nil
	}
	switch node.Kind {
	case ast.KindAction:
		return Program{{Type: TypeAction, Path: path, Name: node.Name, Next: 1}}, nil
	case ast.KindFunction:
		return Program{{Type: TypeFunc, Path: path, Exec: node.Exec, Next: 1}}, nil
	case ast.KindLiteral:
		return Program{{Type: TypeLiteral, Path: path, Value: node.Value, Next: 1}}, nil
	case ast.KindSequence:
		return compileSequence(node, path)
	case ast.KindIf:
		return compileIf(node, path)
	case ast.KindWhile:
		return compileWhile(node, path)
	case ast.KindDoWhile:
		return compileDoWhile(node, path)
	case ast.KindTry:
		return compileTry(node, path)
	case ast.KindFinally:
		return compileFinally(node, path)
	case ast.KindLet:
		return compileLet(node, path)
	case ast.KindRetain:
		return compileRetain(node, path)
	default:
		return nil, &UnknownKind{Kind: string(node.Kind)}
	}
}

func compileSequence(node *ast.Node, path string) (Program, error) {
	var prog Program
	for i, child := range node.Children {
		cp, err := Compile(child, fmt.Sprintf("%s.%d", path, i))
		if err != nil {
			return nil, err
		}
		prog = Chain(prog, cp)
	}
	return prog, nil
}

// compileIf lays out: push(save) test choice pop(restore) consequent
// skip pop(restore) alternate. Choice reads test's own output to pick a
// branch; each branch then gets its own pop, restoring (unless
// Options.NoSave is set) the params that were current before test
// ran, so a test's transient output never leaks into the branch it
// merely gated. Both branches fall through to whatever Chain appends
// after this program once they finish.
func compileIf(node *ast.Node, path string) (Program, error) {
	nosave := node.Options != nil && node.Options.NoSave

	testProg, err := Compile(node.Test, path+".test")
	if err != nil {
		return nil, err
	}
	conseqProg, err := Compile(node.Consequent, path+".consequent")
	if err != nil {
		return nil, err
	}
	altProg, err := Compile(node.Alternate, path+".alternate")
	if err != nil {
		return nil, err
	}

	mode := "restore"
	if nosave {
		mode = ""
	}
	push := &Instruction{Type: TypePush, Path: path, Frame: "save", Next: 1}
	popConseq := &Instruction{Type: TypePop, Path: path, Frame: "save", Mode: mode, Next: 1}
	popAlt := &Instruction{Type: TypePop, Path: path, Frame: "save", Mode: mode, Next: 1}
	choice := &Instruction{Type: TypeChoice, Path: path, Then: 1, Else: len(conseqProg) + 3}
	skip := &Instruction{Type: TypePass, Path: path, Next: len(altProg) + 2}

	prog := Program{push}
	prog = Chain(prog, testProg)
	prog = append(prog, choice, popConseq)
	prog = Chain(prog, conseqProg)
	prog = append(prog, skip, popAlt)
	prog = Chain(prog, altProg)
	return prog, nil
}

// compileWhile lays out: push(save) test choice pop(body) body backjump
// pop(exit). Like compileIf, it pushes/pops a save-frame around the
// test by default (Options.NoSave toggles the pop mode to "" instead
// of "restore"), so a test's transient output never leaks into either
// the body it gates or whatever follows the loop once it exits. The
// backward jump is its own instruction rather than an override on
// body's last instruction, so it works even when body's last
// instruction is itself a choice (which has no Next field to
// override).
func compileWhile(node *ast.Node, path string) (Program, error) {
	nosave := node.Options != nil && node.Options.NoSave
	mode := "restore"
	if nosave {
		mode = ""
	}

	testProg, err := Compile(node.Test, path+".test")
	if err != nil {
		return nil, err
	}
	bodyProg, err := Compile(node.Body, path+".body")
	if err != nil {
		return nil, err
	}

	push := &Instruction{Type: TypePush, Path: path, Frame: "save", Next: 1}
	choice := &Instruction{Type: TypeChoice, Path: path, Then: 1, Else: len(bodyProg) + 3}
	popBody := &Instruction{Type: TypePop, Path: path, Frame: "save", Mode: mode, Next: 1}
	popExit := &Instruction{Type: TypePop, Path: path, Frame: "save", Mode: mode, Next: 1}

	prog := Program{push}
	prog = Chain(prog, testProg)
	prog = append(prog, choice, popBody)
	prog = Chain(prog, bodyProg)

	backjump := &Instruction{Type: TypePass, Path: path}
	prog = append(prog, backjump)
	backjump.Next = -(len(prog) - 1)
	prog = append(prog, popExit)
	return prog, nil
}

// compileDoWhile runs body once unconditionally, then loops the same
// way compileWhile does (push/test/choice/pop, defaulting to saving
// and restoring around the test), but with the test after the body.
func compileDoWhile(node *ast.Node, path string) (Program, error) {
	nosave := node.Options != nil && node.Options.NoSave
	mode := "restore"
	if nosave {
		mode = ""
	}

	bodyProg, err := Compile(node.Body, path+".body")
	if err != nil {
		return nil, err
	}
	testProg, err := Compile(node.Test, path+".test")
	if err != nil {
		return nil, err
	}
	if len(bodyProg) == 0 {
		bodyProg = Program{{Type: TypePass, Next: 1}}
	}

	push := &Instruction{Type: TypePush, Path: path, Frame: "save", Next: 1}
	choice := &Instruction{Type: TypeChoice, Path: path, Then: 1, Else: 2}
	popContinue := &Instruction{Type: TypePop, Path: path, Frame: "save", Mode: mode}
	popExit := &Instruction{Type: TypePop, Path: path, Frame: "save", Mode: mode, Next: 1}

	prog := Chain(bodyProg, Program{push})
	prog = Chain(prog, testProg)
	prog = append(prog, choice, popContinue)
	popContinue.Next = -(len(prog) - 1)
	prog = append(prog, popExit)
	return prog, nil
}

// compileTry: push(catch, Catch=len(body)+2); body; exit(pops catch,
// skips handler on success); pop(catch, falls into handler on
// failure); handler.
func compileTry(node *ast.Node, path string) (Program, error) {
	bodyProg, err := Compile(node.Body, path+".body")
	if err != nil {
		return nil, err
	}
	handlerProg, err := Compile(node.Handler, path+".handler")
	if err != nil {
		return nil, err
	}

	push := &Instruction{Type: TypePush, Path: path, Frame: "catch", Catch: len(bodyProg) + 2, Next: 1}
	exit := &Instruction{Type: TypeExit, Path: path, Frame: "catch", Next: len(handlerProg) + 2}
	popCatch := &Instruction{Type: TypePop, Path: path, Frame: "catch", Next: 1}

	prog := Program{push}
	prog = Chain(prog, bodyProg)
	prog = append(prog, exit, popCatch)
	prog = Chain(prog, handlerProg)
	return prog, nil
}

// compileFinally: push(catch, Catch=len(body)+1); body; pop(catch) -
// the convergence point for both success fallthrough and the
// failure catch-jump; push(save) snapshotting whichever outcome just
// happened; finalizer; pop(save, restore) putting that outcome back
// unless the finalizer itself failed, in which case there is no
// active catch frame left to land on and the finalizer's failure
// propagates on its own.
func compileFinally(node *ast.Node, path string) (Program, error) {
	bodyProg, err := Compile(node.Body, path+".body")
	if err != nil {
		return nil, err
	}
	finalProg, err := Compile(node.Finalizer, path+".finalizer")
	if err != nil {
		return nil, err
	}

	push := &Instruction{Type: TypePush, Path: path, Frame: "catch", Catch: len(bodyProg) + 1, Next: 1}
	popCatch := &Instruction{Type: TypePop, Path: path, Frame: "catch", Next: 1}
	pushSave := &Instruction{Type: TypePush, Path: path, Frame: "save", Next: 1}
	popSave := &Instruction{Type: TypePop, Path: path, Frame: "save", Mode: "restore", Next: 1}

	prog := Program{push}
	prog = Chain(prog, bodyProg)
	prog = append(prog, popCatch, pushSave)
	prog = Chain(prog, finalProg)
	prog = append(prog, popSave)
	return prog, nil
}

func compileLet(node *ast.Node, path string) (Program, error) {
	bodyProg, err := Compile(node.Body, path+".body")
	if err != nil {
		return nil, err
	}
	let := &Instruction{Type: TypeLet, Path: path, Declarations: node.Declarations, Next: 1}
	exit := &Instruction{Type: TypePop, Path: path, Frame: "env", Next: 1}
	prog := Program{let}
	prog = Chain(prog, bodyProg)
	prog = append(prog, exit)
	return prog, nil
}

// compileRetain pushes a save-frame (honoring Field/Filter), runs
// body, and pops it back in "annotate" mode: the result becomes
// {params: saved pre-body params, result: body's output}, on success
// always, and on failure only when Options.Catch is set.
func compileRetain(node *ast.Node, path string) (Program, error) {
	bodyProg, err := Compile(node.Body, path+".body")
	if err != nil {
		return nil, err
	}
	var filterProg Program
	var field string
	alsoOnError := false
	if node.Options != nil {
		field = node.Options.Field
		alsoOnError = node.Options.Catch
		if node.Options.Filter != nil {
			filterProg, err = Compile(node.Options.Filter, path+".filter")
			if err != nil {
				return nil, err
			}
		}
	}
	push := &Instruction{Type: TypePush, Path: path, Frame: "save", Field: field, Filter: filterProg, Next: 1}
	pop := &Instruction{Type: TypePop, Path: path, Frame: "save", Mode: "annotate", Next: 1}
	if alsoOnError {
		// Give the save-frame its own catch target, landing exactly
		// on this pop, the same convergence trick compileFinally uses:
		// a body failure unwinds here instead of skipping past it, so
		// options.catch's "annotate even on failure" promise holds.
		push.Catch = len(bodyProg) + 1
	}

	prog := Program{push}
	prog = Chain(prog, bodyProg)
	prog = append(prog, pop)
	return prog, nil
}

// UnknownKind occurs when Compile is given a Node whose Kind it does
// not recognize.
type UnknownKind struct {
	Kind string
}

func (e *UnknownKind) Error() string {
	return "compile: unknown node kind " + e.Kind
}
