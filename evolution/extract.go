package evolution

import (
	"regexp"
	"strconv"
	"strings"
)

var levelRe = regexp.MustCompile(`(?i)\bLevel\s*(\d+)`)

// itemPath marks anchors that point at an item page.
const itemPath = "/item/"

// Extract builds the local graph of one chain block.
//
// Pass one records where the cards are. Pass two walks the arrows in
// document order: the destination is the first card after the arrow, the
// origin is the card right before the arrow's split wrapper (same parent as
// the wrapper) or, outside a split, the nearest card before the arrow.
// Arrows that cannot be resolved are skipped.
func Extract(b Block) *Graph {
	g := newGraph()

	cards := make([]int, 0, len(b.Elements))
	cardAt := make(map[int]Stage)
	for i, el := range b.Elements {
		if el.Kind == KindCard {
			cards = append(cards, i)
		}
	}
	card := func(i int) Stage {
		s, ok := cardAt[i]
		if !ok {
			s = ParseCard(b.Elements[i].Node, b.Base)
			cardAt[i] = s
		}
		return s
	}

	for i, el := range b.Elements {
		if el.Kind != KindArrow {
			continue
		}

		dst := firstCardAfter(cards, i)
		if dst < 0 {
			continue
		}
		var src int
		if el.Split != NoSplit && el.Split < len(b.Splits) {
			src = siblingCardBefore(b, b.Splits[el.Split])
		} else {
			src = lastCardBefore(cards, i)
		}
		if src < 0 {
			continue
		}

		from, to := card(src), card(dst)
		if from.Identity == "" || to.Identity == "" || from.Identity == to.Identity {
			continue
		}
		g.register(from)
		g.register(to)

		e := Edge{From: from.Identity, To: to.Identity}
		e.Condition, e.Level = parseCondition(el.Node.Text())
		e.Item, e.ItemReference = itemLink(b, el.Node)
		g.Edges = append(g.Edges, e)
	}

	if len(g.Stages) == 0 {
		for _, i := range cards {
			if s := card(i); s.Identity != "" {
				g.register(s)
			}
		}
	}
	return g
}

// firstCardAfter returns the element index of the first card after pos.
func firstCardAfter(cards []int, pos int) int {
	for _, c := range cards {
		if c > pos {
			return c
		}
	}
	return -1
}

// lastCardBefore returns the element index of the nearest card before pos.
func lastCardBefore(cards []int, pos int) int {
	for j := len(cards) - 1; j >= 0; j-- {
		if cards[j] < pos {
			return cards[j]
		}
	}
	return -1
}

// siblingCardBefore returns the nearest card preceding the split wrapper
// that shares the wrapper's parent.
func siblingCardBefore(b Block, sp Split) int {
	end := sp.Position
	if end > len(b.Elements) {
		end = len(b.Elements)
	}
	for j := end - 1; j >= 0; j-- {
		el := b.Elements[j]
		if el.Kind == KindCard && el.Parent == sp.Parent {
			return j
		}
	}
	return -1
}

// parseCondition strips one surrounding pair of parentheses and rewrites
// level thresholds to the canonical "Level N" form.
func parseCondition(raw string) (string, *int) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		raw = strings.TrimSpace(raw[1 : len(raw)-1])
	}
	m := levelRe.FindStringSubmatch(raw)
	if m == nil {
		return raw, nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return raw, nil
	}
	return "Level " + strconv.Itoa(n), &n
}

// itemLink returns the first anchor under n that points at an item page.
func itemLink(b Block, n Node) (name, ref string) {
	for _, a := range n.Descendants("a", "") {
		href := a.Attr("href")
		if strings.Contains(href, itemPath) {
			return a.Text(), ResolveHref(b.Base, href)
		}
	}
	return "", ""
}
