package parser

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// PageKind names the kind of page a URL points at.
type PageKind string

const (
	PageIndex   PageKind = "index"
	PageDetail  PageKind = "detail"
	PageAbility PageKind = "ability"
	PageItem    PageKind = "item"
)

var (
	// ErrNoIndexTable is returned when the listing page has no pokedex table.
	ErrNoIndexTable = errors.New("parser: pokedex table not found")

	// ErrUnknownPage is returned for URLs no route matches.
	ErrUnknownPage = errors.New("parser: unknown page")
)

type route struct {
	prefix string
	kind   PageKind
}

// Registry maps URL paths to page kinds. Longer prefixes are tried first.
type Registry struct {
	routes []route
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.Register("/pokedex/all", PageIndex)
	r.Register("/pokedex/national", PageIndex)
	r.Register("/pokedex/", PageDetail)
	r.Register("/ability/", PageAbility)
	r.Register("/item/", PageItem)
	return r
}

func (r *Registry) Register(prefix string, kind PageKind) {
	for i, rt := range r.routes {
		if rt.prefix == prefix {
			r.routes[i].kind = kind
			return
		}
	}
	r.routes = append(r.routes, route{prefix: prefix, kind: kind})
	// Keep longest prefixes first.
	for i := len(r.routes) - 1; i > 0 && len(r.routes[i].prefix) > len(r.routes[i-1].prefix); i-- {
		r.routes[i], r.routes[i-1] = r.routes[i-1], r.routes[i]
	}
}

func (r *Registry) Get(u *url.URL) (PageKind, error) {
	path := u.Path
	for _, rt := range r.routes {
		if !strings.HasPrefix(path, rt.prefix) {
			continue
		}
		// Directory prefixes need a segment after the slash.
		if strings.HasSuffix(rt.prefix, "/") && strings.Trim(path[len(rt.prefix):], "/") == "" {
			continue
		}
		return rt.kind, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownPage, u.String())
}
