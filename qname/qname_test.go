package qname

import "testing"

func TestCanonicalizeShorthand(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"a", "/_/a"},
		{"p/a", "/_/p/a"},
		{"/ns/a", "/ns/a"},
		{"/ns/p/a", "/ns/p/a"},
		{"ns/p/a", "/ns/p/a"},
		{"  a  ", "/_/a"},
	}
	for _, c := range cases {
		got, err := Canonicalize(c.raw)
		if err != nil {
			t.Fatalf("Canonicalize(%q): %v", c.raw, err)
		}
		if got != c.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestCanonicalizeRejects(t *testing.T) {
	bad := []string{
		"",
		"   ",
		"/x",
		"a/b/c/d",
		"/a//b",
		"a//b",
		"/",
		"/a/b/c/d/e",
	}
	for _, raw := range bad {
		if _, err := Canonicalize(raw); err == nil {
			t.Errorf("Canonicalize(%q) should have failed", raw)
		}
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{"a", "p/a", "/ns/a", "ns/p/a", "/ns/p/a"}
	for _, raw := range inputs {
		once, err := Canonicalize(raw)
		if err != nil {
			t.Fatalf("Canonicalize(%q): %v", raw, err)
		}
		twice, err := Canonicalize(once)
		if err != nil {
			t.Fatalf("Canonicalize(%q): %v", once, err)
		}
		if once != twice {
			t.Errorf("Canonicalize not idempotent: %q -> %q -> %q", raw, once, twice)
		}
	}
}

func TestSegments(t *testing.T) {
	ns, pkg, action, err := Segments("/ns/pkg/action")
	if err != nil {
		t.Fatal(err)
	}
	if ns != "ns" || pkg != "pkg" || action != "action" {
		t.Errorf("got %q %q %q", ns, pkg, action)
	}

	ns, pkg, action, err = Segments("/_/a")
	if err != nil {
		t.Fatal(err)
	}
	if ns != "_" || pkg != "" || action != "a" {
		t.Errorf("got %q %q %q", ns, pkg, action)
	}
}
