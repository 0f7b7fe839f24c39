package parser

import (
	"github.com/brunobiangulo/godex/evolution"
)

// IndexEntry is one row of the national dex listing.
type IndexEntry struct {
	DisplayID string // as printed, e.g. "0001"
	Name      string
	Link      string // absolute detail page URL, empty when the row has none
	Slug      string
	Types     []string
}

// Detail is everything read from one entity's detail page.
type Detail struct {
	HeightCM      *float64
	WeightKG      *float64
	Effectiveness map[string]string // attacking type -> damage label
	Abilities     []AbilityLink
	Chains        []evolution.Block
}

// AbilityLink points at an ability page listed on a detail page.
type AbilityLink struct {
	Name string
	Link string
}
