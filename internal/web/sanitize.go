package web

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Elements never allowed in model-produced fragments. Children of dropped
// elements are dropped with them.
var droppedElements = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Iframe: true,
	atom.Object: true,
	atom.Embed:  true,
	atom.Link:   true,
	atom.Meta:   true,
	atom.Base:   true,
}

// SanitizeFragment strips active content from an HTML fragment before it is
// served to the browser. Event handler attributes and javascript: URLs are
// removed; script-bearing elements are dropped entirely. hx-* attributes
// survive since the fragments drive the page through them.
func SanitizeFragment(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		// Unparseable input is served as text, not markup.
		return html.EscapeString(fragment)
	}

	var b strings.Builder
	for _, n := range nodes {
		scrub(n)
		html.Render(&b, n)
	}
	return b.String()
}

func scrub(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && droppedElements[c.DataAtom] {
			n.RemoveChild(c)
		} else {
			scrub(c)
		}
		c = next
	}

	if n.Type != html.ElementNode {
		return
	}

	kept := n.Attr[:0]
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") {
			continue
		}
		if (key == "href" || key == "src" || key == "action" || key == "formaction") &&
			strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "javascript:") {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}
