package evolution

import "net/url"

// Node is a handle to one markup element, supplied by the page parser.
type Node interface {
	// Text returns the element's text content with whitespace collapsed.
	Text() string
	// FirstText returns the first non-blank text node under the element,
	// whitespace collapsed.
	FirstText() string
	// Attr returns the named attribute, or "" when it is missing.
	Attr(name string) string
	// Descendants returns the descendant elements with the given tag name
	// and class token, in document order. Empty arguments match anything.
	Descendants(tag, class string) []Node
}

// ElementKind tells cards and arrows apart in a flattened block.
type ElementKind uint8

const (
	KindCard ElementKind = iota + 1
	KindArrow
)

func (k ElementKind) String() string {
	switch k {
	case KindCard:
		return "card"
	case KindArrow:
		return "arrow"
	default:
		return "unknown"
	}
}

// NoSplit marks an element that is not inside any split wrapper.
const NoSplit = -1

// Element is one card or arrow of a chain block, in document order.
type Element struct {
	Kind ElementKind
	Node Node
	// Parent identifies the element's parent container. Two elements are
	// siblings when their Parent values are equal.
	Parent int
	// Split is the index into Block.Splits of the innermost split wrapper
	// enclosing the element, or NoSplit.
	Split int
}

// Split is a wrapper grouping parallel branches that share one origin.
type Split struct {
	// Position is the index in Block.Elements of the first element at or
	// after the wrapper's start tag.
	Position int
	// Parent identifies the wrapper's own parent container.
	Parent int
}

// Block is a chain block flattened into an order-preserving listing.
// Document axes (following, preceding, preceding-sibling, ancestor) become
// scans over Elements.
type Block struct {
	Elements []Element
	Splits   []Split
	// Base resolves relative hrefs found in the block.
	Base *url.URL
}
