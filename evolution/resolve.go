package evolution

import (
	"errors"
	"fmt"
)

// ErrMissingIdentity is returned when Resolve is called without a slug for
// the entity being resolved.
var ErrMissingIdentity = errors.New("evolution: missing self identity")

// Self describes the entity whose page the chain blocks were found on.
type Self struct {
	Identity    string
	DisplayID   string
	DisplayName string
	Reference   string
}

// Successor is one outgoing transition of the resolved entity.
type Successor struct {
	To            Stage  `json:"to"`
	Condition     string `json:"method"`
	Level         *int   `json:"level"`
	Item          string `json:"item,omitempty"`
	ItemReference string `json:"item_link,omitempty"`
}

// Record is the canonical evolution data of one entity.
type Record struct {
	Self        Stage       `json:"self"`
	Predecessor *Stage      `json:"predecessor,omitempty"`
	Successors  []Successor `json:"successors"`
	// Related holds every other stage seen in the entity's chain blocks,
	// including ones that are also predecessor or successor destinations.
	Related []Stage `json:"related"`
}

type transitionKey struct {
	to        string
	condition string
	level     int
	hasLevel  bool
	item      string
}

// Resolve folds the graphs of one page into the record of self.
//
// The first edge targeting self, in graph order then edge order, names the
// predecessor. Outgoing edges are deduplicated on destination, condition,
// level and item, because the same branch is often rendered in more than
// one block.
func Resolve(self Self, graphs []*Graph) (*Record, error) {
	if self.Identity == "" {
		return nil, fmt.Errorf("resolve %q: %w", self.DisplayName, ErrMissingIdentity)
	}

	rec := &Record{
		Self: Stage{
			Identity:    self.Identity,
			DisplayID:   self.DisplayID,
			DisplayName: self.DisplayName,
			Reference:   self.Reference,
		},
		Successors: []Successor{},
		Related:    []Stage{},
	}

	related := make(map[string]bool)
	seen := make(map[transitionKey]bool)

	for _, g := range graphs {
		if g == nil || len(g.Stages) == 0 {
			continue
		}

		for _, s := range g.Stages {
			if s.Identity == self.Identity || related[s.Identity] {
				continue
			}
			related[s.Identity] = true
			rec.Related = append(rec.Related, s)
		}

		for _, e := range g.Edges {
			from, okFrom := g.Stage(e.From)
			to, okTo := g.Stage(e.To)
			if !okFrom || !okTo {
				continue
			}

			if to.Identity == self.Identity && rec.Predecessor == nil {
				p := from
				rec.Predecessor = &p
			}

			if from.Identity != self.Identity {
				continue
			}
			key := transitionKey{to: to.Identity, condition: e.Condition, item: e.Item}
			if e.Level != nil {
				key.level, key.hasLevel = *e.Level, true
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			rec.Successors = append(rec.Successors, Successor{
				To:            to,
				Condition:     e.Condition,
				Level:         e.Level,
				Item:          e.Item,
				ItemReference: e.ItemReference,
			})
		}
	}

	return rec, nil
}

// OtherBranches returns Related without the predecessor and the successor
// destinations.
func (r *Record) OtherBranches() []Stage {
	direct := make(map[string]bool, len(r.Successors)+1)
	if r.Predecessor != nil {
		direct[r.Predecessor.Identity] = true
	}
	for _, s := range r.Successors {
		direct[s.To.Identity] = true
	}
	out := make([]Stage, 0, len(r.Related))
	for _, s := range r.Related {
		if !direct[s.Identity] {
			out = append(out, s)
		}
	}
	return out
}
