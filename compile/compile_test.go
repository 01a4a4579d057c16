package compile

import (
	"testing"

	"github.com/yarikc/composer/ast"
)

// everyJumpLands checks that every relative jump in prog stays inside
// the program (spec.md §8's "valid jump targets" invariant).
func everyJumpLands(t *testing.T, prog Program) {
	t.Helper()
	for i, instr := range prog {
		check := func(field string, rel int) {
			if rel == 0 {
				return
			}
			target := i + rel
			if target < 0 || target > len(prog) {
				t.Errorf("instruction %d (%s) %s=%d lands at %d, out of [0,%d]", i, instr.Type, field, rel, target, len(prog))
			}
		}
		check("next", instr.Next)
		check("then", instr.Then)
		check("else", instr.Else)
		check("catch", instr.Catch)
	}
}

func TestCompileSequence(t *testing.T) {
	tree := &ast.Node{
		Kind: ast.KindSequence,
		Children: []*ast.Node{
			{Kind: ast.KindAction, Name: "/_/a"},
			{Kind: ast.KindLiteral, Value: map[string]interface{}{"x": 1}},
			{Kind: ast.KindAction, Name: "/_/b"},
		},
	}
	prog, err := Compile(tree, "root")
	if err != nil {
		t.Fatal(err)
	}
	if len(prog) != 3 {
		t.Fatalf("got %d instructions", len(prog))
	}
	everyJumpLands(t, prog)
}

func TestCompileIf(t *testing.T) {
	tree := &ast.Node{
		Kind:       ast.KindIf,
		Test:       &ast.Node{Kind: ast.KindAction, Name: "/_/t"},
		Consequent: &ast.Node{Kind: ast.KindAction, Name: "/_/c"},
		Alternate:  &ast.Node{Kind: ast.KindAction, Name: "/_/a"},
	}
	prog, err := Compile(tree, "root")
	if err != nil {
		t.Fatal(err)
	}
	everyJumpLands(t, prog)
}

func TestCompileTryHandlerBalanced(t *testing.T) {
	tree := &ast.Node{
		Kind:    ast.KindTry,
		Body:    &ast.Node{Kind: ast.KindAction, Name: "/_/risky"},
		Handler: &ast.Node{Kind: ast.KindLiteral, Value: map[string]interface{}{"recovered": true}},
	}
	prog, err := Compile(tree, "root")
	if err != nil {
		t.Fatal(err)
	}
	everyJumpLands(t, prog)

	push := prog[0]
	if push.Type != TypePush || push.Frame != "catch" {
		t.Fatalf("expected a leading catch push, got %+v", push)
	}
	if push.Catch != 3 {
		t.Errorf("expected catch offset 3 (len(body)+2), got %d", push.Catch)
	}
}

func TestCompileFinallyBothPathsReachFinalizer(t *testing.T) {
	tree := &ast.Node{
		Kind:      ast.KindFinally,
		Body:      &ast.Node{Kind: ast.KindAction, Name: "/_/risky"},
		Finalizer: &ast.Node{Kind: ast.KindLiteral, Value: map[string]interface{}{"cleaned": true}},
	}
	prog, err := Compile(tree, "root")
	if err != nil {
		t.Fatal(err)
	}
	everyJumpLands(t, prog)

	push := prog[0]
	if push.Catch != 2 {
		t.Errorf("expected catch offset 2 (len(body)+1), got %d", push.Catch)
	}
}

func TestCompileWhileJumpsBackward(t *testing.T) {
	tree := &ast.Node{
		Kind: ast.KindWhile,
		Test: &ast.Node{Kind: ast.KindLiteral, Value: map[string]interface{}{"value": false}},
		Body: &ast.Node{Kind: ast.KindAction, Name: "/_/step"},
	}
	prog, err := Compile(tree, "root")
	if err != nil {
		t.Fatal(err)
	}
	everyJumpLands(t, prog)

	backward := false
	for _, instr := range prog {
		if instr.Next < 0 {
			backward = true
		}
	}
	if !backward {
		t.Error("expected some instruction to jump backward to the test")
	}

	if prog[0].Type != TypePush || prog[0].Frame != "save" {
		t.Fatalf("expected a leading save push, got %+v", prog[0])
	}
	last := prog[len(prog)-1]
	if last.Type != TypePop || last.Mode != "restore" {
		t.Fatalf("expected a trailing restoring pop, got %+v", last)
	}
}

func TestCompileWhileNoSaveSkipsRestore(t *testing.T) {
	tree := &ast.Node{
		Kind:    ast.KindWhile,
		Test:    &ast.Node{Kind: ast.KindLiteral, Value: map[string]interface{}{"value": false}},
		Body:    &ast.Node{Kind: ast.KindAction, Name: "/_/step"},
		Options: &ast.Options{NoSave: true},
	}
	prog, err := Compile(tree, "root")
	if err != nil {
		t.Fatal(err)
	}
	everyJumpLands(t, prog)
	for _, instr := range prog {
		if instr.Type == TypePop && instr.Mode != "" {
			t.Errorf("expected nosave to clear pop mode, got %+v", instr)
		}
	}
}

func TestCompileDoWhileRunsBodyBeforeTest(t *testing.T) {
	tree := &ast.Node{
		Kind: ast.KindDoWhile,
		Test: &ast.Node{Kind: ast.KindLiteral, Value: map[string]interface{}{"value": false}},
		Body: &ast.Node{Kind: ast.KindAction, Name: "/_/step"},
	}
	prog, err := Compile(tree, "root")
	if err != nil {
		t.Fatal(err)
	}
	everyJumpLands(t, prog)
	if prog[0].Type != TypeAction {
		t.Fatalf("expected the body to run before the test, got %+v", prog[0])
	}
}

func TestCompileRetainFilterIsCompiled(t *testing.T) {
	tree := &ast.Node{
		Kind: ast.KindRetain,
		Body: &ast.Node{Kind: ast.KindAction, Name: "/_/risky"},
		Options: &ast.Options{
			Filter: &ast.Node{Kind: ast.KindLiteral, Value: map[string]interface{}{"kept": true}},
		},
	}
	prog, err := Compile(tree, "root")
	if err != nil {
		t.Fatal(err)
	}
	everyJumpLands(t, prog)
	if len(prog[0].Filter) == 0 {
		t.Fatal("expected the push instruction to carry a compiled filter program")
	}
}

func TestChainPreservesInternalJumps(t *testing.T) {
	a := &ast.Node{Kind: ast.KindIf,
		Test:       &ast.Node{Kind: ast.KindLiteral, Value: map[string]interface{}{"value": true}},
		Consequent: &ast.Node{Kind: ast.KindAction, Name: "/_/c"},
		Alternate:  &ast.Node{Kind: ast.KindAction, Name: "/_/a"},
	}
	progA, err := Compile(a, "a")
	if err != nil {
		t.Fatal(err)
	}
	progB, err := Compile(&ast.Node{Kind: ast.KindAction, Name: "/_/tail"}, "b")
	if err != nil {
		t.Fatal(err)
	}
	chained := Chain(progA, progB)
	if len(chained) != len(progA)+len(progB) {
		t.Fatalf("got %d instructions", len(chained))
	}
	everyJumpLands(t, chained)
}
