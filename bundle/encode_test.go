package bundle

import (
	"encoding/json"
	"testing"

	"github.com/yarikc/composer/ast"
	"github.com/yarikc/composer/compile"
)

func TestEncodeCompilesAttachedComposition(t *testing.T) {
	step, err := ast.Action("a")
	if err != nil {
		t.Fatal(err)
	}
	doc, err := Encode(step, "/_/myapp")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name != "/_/myapp" {
		t.Fatalf("got name %q", doc.Name)
	}
	if len(doc.Actions) != 1 {
		t.Fatalf("got %d actions", len(doc.Actions))
	}
	rec := doc.Actions[0].Action
	if rec.Exec == nil || rec.Exec.Kind != ConductorExecKind {
		t.Fatalf("expected a conductor exec, got %+v", rec)
	}
	var prog compile.Program
	if err := json.Unmarshal([]byte(rec.Exec.Code), &prog); err != nil {
		t.Fatalf("code is not a valid program: %v", err)
	}
	if len(rec.Annotations) != 1 || rec.Annotations[0].Key != "conductor" {
		t.Fatalf("expected the original tree preserved as an annotation, got %+v", rec.Annotations)
	}
}

func TestEncodeRequiresNamedAction(t *testing.T) {
	step, err := ast.Action("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Encode(step, ""); err == nil {
		t.Fatal("expected CannotEncode")
	}
}
