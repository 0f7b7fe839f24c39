package parser

import (
	"net/url"

	"golang.org/x/net/html"

	"github.com/brunobiangulo/godex/evolution"
)

// Class tokens used by the evolution chart markup.
const (
	classChain = "infocard-list-evo"
	classCard  = "infocard"
	classArrow = "infocard-arrow"
	classSplit = "infocard-evo-split"
)

// ChainBlocks returns every top-level evolution chain on the page,
// flattened for evolution.Extract. Chain lists nested inside another chain
// (the branches of a split) are part of their enclosing block.
func ChainBlocks(doc *html.Node, base *url.URL) []evolution.Block {
	var blocks []evolution.Block
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c, "div") && hasClass(c, classChain) {
				blocks = append(blocks, flattenBlock(c, base))
				continue
			}
			walk(c)
		}
	}
	walk(doc)
	return blocks
}

// flattenBlock lists the cards and arrows under root in document order and
// records each one's parent container and innermost split wrapper.
func flattenBlock(root *html.Node, base *url.URL) evolution.Block {
	b := evolution.Block{Base: base}
	ids := map[*html.Node]int{root: 0}
	id := func(n *html.Node) int {
		if v, ok := ids[n]; ok {
			return v
		}
		ids[n] = len(ids)
		return ids[n]
	}

	var walk func(n *html.Node, split int)
	walk = func(n *html.Node, split int) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch {
			case hasClass(c, classArrow):
				b.Elements = append(b.Elements, evolution.Element{
					Kind: evolution.KindArrow, Node: Wrap(c), Parent: id(n), Split: split,
				})
			case isElement(c, "div") && hasClass(c, classCard):
				b.Elements = append(b.Elements, evolution.Element{
					Kind: evolution.KindCard, Node: Wrap(c), Parent: id(n), Split: split,
				})
			case hasClass(c, classSplit):
				b.Splits = append(b.Splits, evolution.Split{Position: len(b.Elements), Parent: id(n)})
				walk(c, len(b.Splits)-1)
			default:
				walk(c, split)
			}
		}
	}
	walk(root, evolution.NoSplit)
	return b
}
