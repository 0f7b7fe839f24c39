package parser

import (
	"fmt"
	"io"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/brunobiangulo/godex/evolution"
)

// NoDescription is stored for abilities whose page has no effect text.
const NoDescription = "—"

var (
	reMeters    = regexp.MustCompile(`(?i)([\d.]+)\s*m\b`)
	reKilograms = regexp.MustCompile(`(?i)([\d.]+)\s*kg\b`)
)

// ParseIndex reads the pokedex table of the listing page. Rows sharing a
// detail link (alternate forms) are kept once, first row wins.
func ParseIndex(r io.Reader, base *url.URL) ([]IndexEntry, error) {
	doc, err := ParseDocument(r)
	if err != nil {
		return nil, fmt.Errorf("parsing index page: %w", err)
	}

	table := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "table") && getAttr(n, "id") == "pokedex"
	})
	if table == nil {
		return nil, ErrNoIndexTable
	}

	var entries []IndexEntry
	seen := make(map[string]bool)
	for _, tr := range findAll(table, byTagClass("tr", "")) {
		if tr.Parent == nil || !isElement(tr.Parent, "tbody") {
			continue
		}

		var e IndexEntry
		if idn := findFirst(tr, byTagClass("span", "infocard-cell-data")); idn != nil {
			e.DisplayID = ownText(idn)
		}
		if a := findFirst(tr, byTagClass("a", "ent-name")); a != nil {
			e.Name = ownText(a)
			if href := getAttr(a, "href"); href != "" {
				e.Link = evolution.ResolveHref(base, href)
				e.Slug = evolution.Slug(href)
			}
		}
		for _, td := range findAll(tr, byTagClass("td", "cell-icon")) {
			for _, a := range findAll(td, byTagClass("a", "")) {
				if t := ownText(a); t != "" {
					e.Types = append(e.Types, t)
				}
			}
		}

		if e.Slug != "" {
			if seen[e.Slug] {
				continue
			}
			seen[e.Slug] = true
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ParseDetail reads vitals, type effectiveness, ability links and the
// evolution chains from a detail page.
func ParseDetail(r io.Reader, base *url.URL) (*Detail, error) {
	doc, err := ParseDocument(r)
	if err != nil {
		return nil, fmt.Errorf("parsing detail page: %w", err)
	}

	d := &Detail{
		Effectiveness: make(map[string]string),
		Chains:        ChainBlocks(doc, base),
	}

	if td := headerCell(doc, "Height"); td != nil {
		if m := reMeters.FindStringSubmatch(normalizeSpace(ownText(td))); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				cm := math.Round(v*100*10) / 10
				d.HeightCM = &cm
			}
		}
	}
	if td := headerCell(doc, "Weight"); td != nil {
		if m := reKilograms.FindStringSubmatch(normalizeSpace(ownText(td))); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				d.WeightKG = &v
			}
		}
	}

	var names, multipliers []string
	for _, table := range findAll(doc, byTagClass("table", "type-table")) {
		rows := findAll(table, byTagClass("tr", ""))
		if len(rows) < 2 {
			continue
		}
		for _, th := range findAll(rows[0], byTagClass("th", "")) {
			for _, a := range findAll(th, byTagClass("a", "")) {
				if title := getAttr(a, "title"); title != "" {
					names = append(names, title)
				}
			}
		}
		for _, td := range findAll(rows[1], byTagClass("td", "")) {
			multipliers = append(multipliers, ownText(td))
		}
	}
	for i := 0; i < len(names) && i < len(multipliers); i++ {
		d.Effectiveness[names[i]] = FormatEffectiveness(multipliers[i])
	}

	seen := make(map[string]bool)
	for _, th := range findAll(doc, byTagClass("th", "")) {
		if !strings.Contains(normalizeSpace(textContent(th)), "Abilities") {
			continue
		}
		td := nextElement(th)
		if td == nil || !isElement(td, "td") {
			continue
		}
		for _, a := range findAll(td, byTagClass("a", "")) {
			href := getAttr(a, "href")
			if href == "" {
				continue
			}
			link := evolution.ResolveHref(base, href)
			if seen[link] {
				continue
			}
			seen[link] = true
			d.Abilities = append(d.Abilities, AbilityLink{
				Name: normalizeSpace(textContent(a)),
				Link: link,
			})
		}
	}

	return d, nil
}

// ParseAbility returns the effect description of an ability page.
func ParseAbility(r io.Reader) (string, error) {
	doc, err := ParseDocument(r)
	if err != nil {
		return "", fmt.Errorf("parsing ability page: %w", err)
	}
	for _, h2 := range findAll(doc, byTagClass("h2", "")) {
		if !strings.Contains(textContent(h2), "Effect") {
			continue
		}
		p := nextElement(h2)
		if p == nil || !isElement(p, "p") {
			continue
		}
		if text := normalizeSpace(textContent(p)); text != "" {
			return text, nil
		}
	}
	return NoDescription, nil
}

// FormatEffectiveness labels a type-chart multiplier cell.
func FormatEffectiveness(v string) string {
	switch strings.TrimSpace(v) {
	case "":
		return "neutral"
	case "½":
		return "not very effective"
	case "¼":
		return "barely effective"
	case "0":
		return "no effect"
	case "2":
		return "super effective"
	case "4":
		return "extremely effective"
	default:
		return v
	}
}

// headerCell finds the first th whose text contains label and returns the
// td right after it.
func headerCell(doc *html.Node, label string) *html.Node {
	for _, th := range findAll(doc, byTagClass("th", "")) {
		if !strings.Contains(textContent(th), label) {
			continue
		}
		if td := nextElement(th); td != nil && isElement(td, "td") {
			return td
		}
	}
	return nil
}
