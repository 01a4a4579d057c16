// Package docs renders a bundle.Document as a human-readable HTML
// page: one section per attached action, with any "doc" annotation
// rendered from markdown, grounded on the same idea as sheens'
// tools/spec-html.go but applied to a composition document instead of
// a message-matching spec.
package docs

import (
	"bytes"
	"fmt"
	"html"

	"github.com/russross/blackfriday/v2"

	"github.com/yarikc/composer/ast"
	"github.com/yarikc/composer/bundle"
)

// RenderHTML renders doc as a standalone HTML page.
func RenderHTML(doc *bundle.Document) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n", html.EscapeString(doc.Name))
	fmt.Fprintf(&buf, "<h1>%s</h1>\n", html.EscapeString(doc.Name))

	for _, at := range doc.Actions {
		fmt.Fprintf(&buf, "<h2>%s</h2>\n", html.EscapeString(at.Name))
		if doc := annotationValue(at, "doc"); doc != "" {
			buf.Write(blackfriday.Run([]byte(doc)))
		}
		if at.Action != nil && at.Action.Exec != nil {
			fmt.Fprintf(&buf, "<p>kind: <code>%s</code></p>\n", html.EscapeString(at.Action.Exec.Kind))
			if at.Action.Exec.Kind != "conductor" {
				fmt.Fprintf(&buf, "<pre>%s</pre>\n", html.EscapeString(at.Action.Exec.Code))
			}
		}
	}

	buf.WriteString("</body></html>\n")
	return buf.Bytes()
}

func annotationValue(at *ast.Attachment, key string) string {
	if at.Action == nil {
		return ""
	}
	for _, a := range at.Action.Annotations {
		if a.Key == key {
			if s, ok := a.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}
