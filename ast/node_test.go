package ast

import "testing"

func TestNodeCopyIsDeep(t *testing.T) {
	n := &Node{
		Kind:     KindSequence,
		Children: []*Node{{Kind: KindLiteral, Value: map[string]interface{}{"x": 1}}},
		Options:  &Options{Filter: &Node{Kind: KindAction, Name: "/_/f"}},
	}
	cp := n.Copy()

	cp.Children[0].Value.(map[string]interface{})["x"] = 2
	cp.Options.Filter.Name = "/_/changed"

	if n.Children[0].Value.(map[string]interface{})["x"] != 1 {
		t.Error("mutating the copy's child leaked back into the original")
	}
	if n.Options.Filter.Name != "/_/f" {
		t.Error("mutating the copy's filter leaked back into the original")
	}
}

func TestNodeCopyNil(t *testing.T) {
	var n *Node
	if n.Copy() != nil {
		t.Error("copying a nil node should return nil")
	}
}

func TestAttachmentCopyIsDeep(t *testing.T) {
	at := &Attachment{
		Name: "/_/a",
		Action: &ActionRecord{
			Composition: &Node{Kind: KindAction, Name: "/_/inner"},
			Annotations: []Annotation{{Key: "doc", Value: "hello"}},
		},
	}
	cp := at.Copy()
	cp.Action.Composition.Name = "/_/changed"
	cp.Action.Annotations[0].Value = "changed"

	if at.Action.Composition.Name != "/_/inner" {
		t.Error("mutating the copy's composition leaked back into the original")
	}
	if at.Action.Annotations[0].Value != "hello" {
		t.Error("mutating the copy's annotations leaked back into the original")
	}
}
