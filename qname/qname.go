// Package qname canonicalizes the qualified names used to identify
// actions: strings of the form "/namespace/[package/]action".
//
// A caller can give any of the shorthand forms ("a", "p/a", "/ns/a",
// "/ns/p/a"); Canonicalize always returns the leading-slash form with
// an explicit namespace, defaulting to "_" when none was given.
package qname

import "strings"

// DefaultNamespace is substituted for a missing namespace segment.
const DefaultNamespace = "_"

// Canonicalize parses raw and returns its canonical qualified form.
//
// The canonical form always has a leading slash and either two or
// three segments after it (namespace+action, or
// namespace+package+action). Shorthand with one or two segments and no
// leading slash is qualified with DefaultNamespace; shorthand with
// three segments is qualified with a leading slash only.
func Canonicalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &InvalidName{Raw: raw}
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) < 1 || len(parts) > 4 {
		return "", &InvalidName{Raw: raw}
	}

	qualified := strings.HasPrefix(trimmed, "/")

	var segs []string
	if qualified {
		segs = parts[1:]
		if len(segs) < 2 || len(segs) > 3 {
			// Rejects "/x" (namespace present, no action) and
			// anything with more than three segments.
			return "", &InvalidName{Raw: raw}
		}
	} else {
		segs = parts
		if len(segs) > 3 {
			// Rejects "a/b/c/d": too many parts without a
			// leading slash to disambiguate a namespace.
			return "", &InvalidName{Raw: raw}
		}
	}

	for _, s := range segs {
		if strings.TrimSpace(s) == "" {
			return "", &InvalidName{Raw: raw}
		}
	}

	if qualified {
		return "/" + strings.Join(segs, "/"), nil
	}

	switch len(segs) {
	case 1, 2:
		return "/" + DefaultNamespace + "/" + strings.Join(segs, "/"), nil
	case 3:
		return "/" + strings.Join(segs, "/"), nil
	default:
		return "", &InvalidName{Raw: raw}
	}
}

// InvalidName occurs when Canonicalize rejects raw.
type InvalidName struct {
	Raw string
}

func (e *InvalidName) Error() string {
	return `invalid action name "` + e.Raw + `"`
}

// Segments splits a canonical name into namespace, package (possibly
// empty), and action.
func Segments(canonical string) (namespace, pkg, action string, err error) {
	if _, e := Canonicalize(canonical); e != nil {
		return "", "", "", e
	}
	segs := strings.Split(strings.TrimPrefix(canonical, "/"), "/")
	switch len(segs) {
	case 2:
		return segs[0], "", segs[1], nil
	case 3:
		return segs[0], segs[1], segs[2], nil
	default:
		return "", "", "", &InvalidName{Raw: canonical}
	}
}
