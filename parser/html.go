package parser

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/brunobiangulo/godex/evolution"
)

// ParseDocument parses an HTML page.
func ParseDocument(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// htmlNode adapts *html.Node to evolution.Node.
type htmlNode struct {
	n *html.Node
}

// Wrap returns n as an evolution.Node.
func Wrap(n *html.Node) evolution.Node {
	return htmlNode{n: n}
}

func (h htmlNode) Text() string { return normalizeSpace(textContent(h.n)) }

func (h htmlNode) FirstText() string { return normalizeSpace(firstText(h.n)) }

func (h htmlNode) Attr(name string) string { return getAttr(h.n, name) }

func (h htmlNode) Descendants(tag, class string) []evolution.Node {
	var out []evolution.Node
	for _, d := range findAll(h.n, func(n *html.Node) bool {
		return (tag == "" || n.Data == tag) && (class == "" || hasClass(n, class))
	}) {
		out = append(out, htmlNode{n: d})
	}
	return out
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// hasClass reports whether class is one of n's class tokens.
func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && (tag == "" || n.Data == tag)
}

// findAll returns the element descendants of n matching pred, in document
// order. n itself is not considered.
func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && pred(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && pred(c) {
			return c
		}
		if f := findFirst(c, pred); f != nil {
			return f
		}
	}
	return nil
}

func byTagClass(tag, class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return isElement(n, tag) && (class == "" || hasClass(n, class))
	}
}

// nextElement returns the next element sibling of n.
func nextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		if p.Type == html.TextNode {
			sb.WriteString(p.Data)
			return
		}
		if isElement(p, "script") || isElement(p, "style") {
			return
		}
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// ownText returns the first non-blank text node directly under n.
func ownText(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if t := strings.TrimSpace(c.Data); t != "" {
				return t
			}
		}
	}
	return ""
}

// firstText returns the first non-blank text node under n in document
// order, skipping scripts and styles.
func firstText(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return c.Data
			}
		case isElement(c, "script") || isElement(c, "style"):
		default:
			if t := firstText(c); t != "" {
				return t
			}
		}
	}
	return ""
}

// normalizeSpace collapses whitespace runs. strings.Fields treats U+00A0
// as space, so non-breaking spaces go too.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
