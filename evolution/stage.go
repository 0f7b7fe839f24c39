// Package evolution rebuilds evolution graphs from chain markup.
//
// A chain block encodes parent/child relationships only through document
// order: cards are stages, arrows sit between them, and split wrappers group
// several arrows that share one origin. Extract turns one flattened block into
// a Graph; Resolve folds every Graph found on an entity's page into a single
// Record for that entity.
package evolution

import (
	"net/url"
	"regexp"
	"strings"
)

// Stage is one entity as it appears inside a chain block.
type Stage struct {
	Identity    string `json:"slug"`
	DisplayID   string `json:"id,omitempty"` // empty when the card shows no number
	DisplayName string `json:"name"`
	Reference   string `json:"link"`
}

// Edge is one directed arrow between two stages of the same block.
type Edge struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Condition     string `json:"method"`
	Level         *int   `json:"level"`
	Item          string `json:"item,omitempty"`
	ItemReference string `json:"item_link,omitempty"`
}

// Graph is the local result of one chain block. Stages keep first-seen order.
type Graph struct {
	Stages []Stage `json:"stages"`
	Edges  []Edge  `json:"edges"`

	index map[string]int
}

func newGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Stage returns the stage registered under identity. It never mutates g,
// so concurrent readers are safe. Graphs built outside Extract (decoded from
// JSON, say) have no index and are scanned in order.
func (g *Graph) Stage(identity string) (Stage, bool) {
	if g.index == nil {
		for _, s := range g.Stages {
			if s.Identity == identity {
				return s, true
			}
		}
		return Stage{}, false
	}
	i, ok := g.index[identity]
	if !ok {
		return Stage{}, false
	}
	return g.Stages[i], true
}

// register adds s unless its identity is already known. The first sighting
// keeps its attributes.
func (g *Graph) register(s Stage) {
	if _, ok := g.index[s.Identity]; ok {
		return
	}
	g.index[s.Identity] = len(g.Stages)
	g.Stages = append(g.Stages, s)
}

var displayIDRe = regexp.MustCompile(`#\s*(\d+)`)

// ParseCard reads a card node: the ent-name anchor gives the name (its first
// text node) and the link, the small print may carry a "#0133" style number.
func ParseCard(n Node, base *url.URL) Stage {
	var s Stage
	if names := n.Descendants("a", "ent-name"); len(names) > 0 {
		href := names[0].Attr("href")
		s.DisplayName = names[0].FirstText()
		s.Reference = ResolveHref(base, href)
		s.Identity = Slug(href)
	}

	var small []string
	for _, sm := range n.Descendants("small", "") {
		if t := sm.Text(); t != "" {
			small = append(small, t)
		}
	}
	if m := displayIDRe.FindStringSubmatch(strings.Join(small, " ")); m != nil {
		s.DisplayID = m[1]
	}
	return s
}

// Slug returns the last path segment of href, ignoring a trailing slash:
// "https://pokemondb.net/pokedex/bulbasaur/" -> "bulbasaur".
func Slug(href string) string {
	href = strings.TrimRight(strings.TrimSpace(href), "/")
	if href == "" {
		return ""
	}
	if i := strings.LastIndex(href, "/"); i >= 0 {
		return href[i+1:]
	}
	return href
}

// ResolveHref makes href absolute against base. Unparseable hrefs are
// returned unchanged.
func ResolveHref(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
