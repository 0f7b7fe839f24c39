// Package godex crawls a Pokédex site, rebuilds each entity's evolution
// chain from the page markup and keeps the catalog in SQLite.
package godex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/godex/evolution"
	"github.com/brunobiangulo/godex/export"
	"github.com/brunobiangulo/godex/fetch"
	"github.com/brunobiangulo/godex/parser"
	"github.com/brunobiangulo/godex/store"
)

// Engine is the main entry point for crawling and querying the catalog.
type Engine interface {
	// Crawl fetches the index, then every detail page (and its ability
	// pages), and stores the result. Per-entity failures are counted, not
	// returned.
	Crawl(ctx context.Context, opts ...CrawlOption) (*CrawlResult, error)

	// CrawlEntity fetches and stores a single detail page.
	CrawlEntity(ctx context.Context, rawURL string, opts ...CrawlOption) (*store.Pokemon, error)

	// Get returns a stored entity.
	Get(ctx context.Context, slug string) (*store.Pokemon, error)

	// Evolution returns the aggregated evolution view of a stored entity.
	Evolution(ctx context.Context, slug string) (*evolution.Summary, error)

	// List returns the catalog in dex order.
	List(ctx context.Context) ([]store.Pokemon, error)

	// Transitions returns flat transition rows matching the filter.
	Transitions(ctx context.Context, f store.TransitionFilter) ([]evolution.Transition, error)

	// Family returns the slugs of every stored entity connected to slug by
	// evolutions in either direction, slug first.
	Family(ctx context.Context, slug string) ([]string, error)

	// MultiTyped counts entities with two or more types.
	MultiTyped(ctx context.Context) (int, error)

	// Crawls returns recent crawl runs, newest first.
	Crawls(ctx context.Context, limit int) ([]store.CrawlRun, error)

	ExportJSON(ctx context.Context, w io.Writer) error
	ExportXLSX(ctx context.Context, w io.Writer) error

	// Close cleanly shuts down the engine.
	Close() error
}

// CrawlResult reports what a crawl did.
type CrawlResult struct {
	RunID    string        `json:"run_id"`
	Pages    int           `json:"pages"`
	Entities int           `json:"entities"`
	Failures int           `json:"failures"`
	Elapsed  time.Duration `json:"elapsed"`
}

// CrawlOption configures crawl behavior.
type CrawlOption func(*crawlOptions)

type crawlOptions struct {
	limit     int
	slugs     map[string]bool
	abilities bool
}

// WithLimit stops after the first n index entries.
func WithLimit(n int) CrawlOption {
	return func(o *crawlOptions) { o.limit = n }
}

// WithSlugs restricts the crawl to the given entities.
func WithSlugs(slugs ...string) CrawlOption {
	return func(o *crawlOptions) {
		if o.slugs == nil {
			o.slugs = make(map[string]bool)
		}
		for _, s := range slugs {
			o.slugs[strings.ToLower(strings.TrimSpace(s))] = true
		}
	}
}

// WithoutAbilities skips ability pages; descriptions are left as
// parser.NoDescription.
func WithoutAbilities() CrawlOption {
	return func(o *crawlOptions) { o.abilities = false }
}

const abilityConcurrency = 4

// engine is the concrete implementation of Engine.
type engine struct {
	cfg      Config
	store    *store.Store
	client   *fetch.Client
	registry *parser.Registry
}

// New creates a new engine with the given configuration.
func New(cfg Config) (Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: base_url: %v", ErrInvalidConfig, err)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 8
	}
	if cfg.IndexPath == "" {
		cfg.IndexPath = "/pokedex/all"
	}

	s, err := store.New(cfg.resolveDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	client := fetch.New(fetch.Config{
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxBodyBytes:      cfg.MaxBodyBytes,
	}, nil)

	return &engine{
		cfg:      cfg,
		store:    s,
		client:   client,
		registry: parser.NewRegistry(),
	}, nil
}

// entryResult is what one detail goroutine produces. Results are merged
// after the group returns.
type entryResult struct {
	pokemon *store.Pokemon
	pages   int
	err     error
}

// abilityResult is the outcome of one ability page fetch.
type abilityResult struct {
	name        string
	description string
	fetched     bool
}

func (e *engine) Crawl(ctx context.Context, opts ...CrawlOption) (*CrawlResult, error) {
	o := crawlOptions{abilities: e.cfg.FetchAbilities}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	runID, err := e.store.StartCrawl(ctx)
	if err != nil {
		return nil, err
	}
	res := &CrawlResult{RunID: runID}

	var lastErr string
	finish := func() {
		res.Elapsed = time.Since(start)
		// Record the run even when ctx is already cancelled.
		if err := e.store.FinishCrawl(context.WithoutCancel(ctx), runID, store.CrawlStats{
			Pages:     res.Pages,
			Entities:  res.Entities,
			Failures:  res.Failures,
			LastError: lastErr,
		}); err != nil {
			slog.Warn("crawl: recording run failed", "run", runID, "error", err)
		}
	}

	entries, err := e.fetchIndex(ctx)
	if err != nil {
		lastErr = err.Error()
		res.Failures++
		finish()
		return nil, err
	}
	res.Pages++
	entries = selectEntries(entries, o)

	slog.Info("crawl: index loaded", "run", runID, "entries", len(entries))

	results := make([]entryResult, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			p, pages, err := e.crawlDetail(gctx, entry, o.abilities)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = entryResult{pokemon: p, pages: pages, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		lastErr = err.Error()
		finish()
		return nil, fmt.Errorf("crawl: %w", err)
	}

	for i, r := range results {
		res.Pages += r.pages
		if r.err != nil {
			res.Failures++
			lastErr = r.err.Error()
			slog.Warn("crawl: detail failed", "slug", entries[i].Slug, "error", r.err)
			continue
		}
		if err := e.store.UpsertPokemon(ctx, *r.pokemon); err != nil {
			res.Failures++
			lastErr = err.Error()
			slog.Warn("crawl: store failed", "slug", entries[i].Slug, "error", err)
			continue
		}
		res.Entities++
	}

	finish()
	slog.Info("crawl: done", "run", runID,
		"pages", res.Pages, "entities", res.Entities, "failures", res.Failures,
		"elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

func (e *engine) CrawlEntity(ctx context.Context, rawURL string, opts ...CrawlOption) (*store.Pokemon, error) {
	o := crawlOptions{abilities: e.cfg.FetchAbilities}
	for _, opt := range opts {
		opt(&o)
	}

	link, err := fetch.Resolve(e.cfg.BaseURL, rawURL)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("parsing url %q: %w", link, err)
	}
	entry := parser.IndexEntry{Link: link, Slug: evolution.Slug(u.Path)}

	// Keep what the index told us on an earlier crawl.
	if prev, err := e.store.GetPokemon(ctx, entry.Slug); err == nil {
		entry.DisplayID, entry.Name, entry.Types = prev.DexID, prev.Name, prev.Types
	}

	p, _, err := e.crawlDetail(ctx, entry, o.abilities)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpsertPokemon(ctx, *p); err != nil {
		return nil, err
	}
	return e.store.GetPokemon(ctx, p.Slug)
}

func (e *engine) fetchIndex(ctx context.Context) ([]parser.IndexEntry, error) {
	link, err := fetch.Resolve(e.cfg.BaseURL, e.cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("%w: index_path: %v", ErrInvalidConfig, err)
	}
	page, err := e.fetchKind(ctx, link, parser.PageIndex)
	if err != nil {
		return nil, err
	}
	entries, err := parser.ParseIndex(page.Reader(), page.URL)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrIndexEmpty
	}
	return entries, nil
}

// crawlDetail fetches one detail page and, optionally, its ability pages.
// It returns the number of pages downloaded.
func (e *engine) crawlDetail(ctx context.Context, entry parser.IndexEntry, abilities bool) (*store.Pokemon, int, error) {
	if entry.Link == "" {
		p, err := baseOnly(entry)
		return p, 0, err
	}
	page, err := e.fetchKind(ctx, entry.Link, parser.PageDetail)
	if err != nil {
		return nil, 0, err
	}
	pages := 1

	detail, err := parser.ParseDetail(page.Reader(), page.URL)
	if err != nil {
		return nil, pages, err
	}

	name := entry.Name
	if name == "" {
		name = entry.Slug
	}
	graphs := make([]*evolution.Graph, 0, len(detail.Chains))
	for _, b := range detail.Chains {
		graphs = append(graphs, evolution.Extract(b))
	}
	record, err := evolution.Resolve(evolution.Self{
		Identity:    entry.Slug,
		DisplayID:   entry.DisplayID,
		DisplayName: name,
		Reference:   entry.Link,
	}, graphs)
	if err != nil {
		return nil, pages, err
	}
	// The index has no name for entities crawled on their own; take the
	// one the chain cards show.
	if entry.Name == "" {
		for _, g := range graphs {
			if st, ok := g.Stage(entry.Slug); ok {
				name = st.DisplayName
				if entry.DisplayID == "" {
					entry.DisplayID = st.DisplayID
				}
				record.Self.DisplayName, record.Self.DisplayID = st.DisplayName, entry.DisplayID
				break
			}
		}
	}

	descriptions := make(map[string]string, len(detail.Abilities))
	if abilities && len(detail.Abilities) > 0 {
		fetched, err := e.fetchAbilities(ctx, detail.Abilities)
		if err != nil {
			return nil, pages, err
		}
		for _, r := range fetched {
			descriptions[r.name] = r.description
			if r.fetched {
				pages++
			}
		}
	} else {
		for _, a := range detail.Abilities {
			descriptions[a.Name] = parser.NoDescription
		}
	}

	return &store.Pokemon{
		Slug:          entry.Slug,
		DexID:         entry.DisplayID,
		Name:          name,
		Link:          entry.Link,
		Types:         entry.Types,
		HeightCM:      detail.HeightCM,
		WeightKG:      detail.WeightKG,
		Effectiveness: detail.Effectiveness,
		Abilities:     descriptions,
		Evolution:     record,
		Transitions:   record.Transitions(),
	}, pages, nil
}

// baseOnly keeps an index row that links to no detail page. Only the index
// attributes are known, so the row is keyed on its dex number.
func baseOnly(entry parser.IndexEntry) (*store.Pokemon, error) {
	slug := entry.Slug
	if slug == "" && entry.DisplayID != "" {
		slug = "dex-" + entry.DisplayID
	}
	if slug == "" {
		return nil, fmt.Errorf("%q: index row has neither link nor number", entry.Name)
	}
	record := &evolution.Record{
		Self: evolution.Stage{
			Identity:    slug,
			DisplayID:   entry.DisplayID,
			DisplayName: entry.Name,
		},
		Successors: []evolution.Successor{},
		Related:    []evolution.Stage{},
	}
	return &store.Pokemon{
		Slug:        slug,
		DexID:       entry.DisplayID,
		Name:        entry.Name,
		Types:       entry.Types,
		Evolution:   record,
		Transitions: []evolution.Transition{},
	}, nil
}

// fetchAbilities downloads ability pages concurrently. A failed page only
// costs its description; the error returned is the context's.
func (e *engine) fetchAbilities(ctx context.Context, links []parser.AbilityLink) ([]abilityResult, error) {
	results := make([]abilityResult, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(abilityConcurrency)
	for i, link := range links {
		g.Go(func() error {
			r := abilityResult{name: link.Name, description: parser.NoDescription}
			page, err := e.fetchKind(gctx, link.Link, parser.PageAbility)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Debug("crawl: ability failed", "ability", link.Name, "error", err)
				results[i] = r
				return nil
			}
			r.fetched = true
			if desc, err := parser.ParseAbility(page.Reader()); err == nil {
				r.description = desc
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// fetchKind downloads rawURL after checking the registry routes it to kind.
func (e *engine) fetchKind(ctx context.Context, rawURL string, kind parser.PageKind) (*fetch.Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	got, err := e.registry.Get(u)
	if err != nil {
		return nil, err
	}
	if got != kind {
		return nil, fmt.Errorf("%w: %s is %s, want %s", ErrUnexpectedPage, rawURL, got, kind)
	}
	return e.client.Get(ctx, rawURL)
}

func selectEntries(entries []parser.IndexEntry, o crawlOptions) []parser.IndexEntry {
	var out []parser.IndexEntry
	for _, en := range entries {
		if o.slugs != nil && !o.slugs[en.Slug] {
			continue
		}
		out = append(out, en)
		if o.limit > 0 && len(out) == o.limit {
			break
		}
	}
	return out
}

func (e *engine) Get(ctx context.Context, slug string) (*store.Pokemon, error) {
	p, err := e.store.GetPokemon(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return p, err
}

func (e *engine) Evolution(ctx context.Context, slug string) (*evolution.Summary, error) {
	p, err := e.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	if p.Evolution == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEvolution, slug)
	}
	s := p.Evolution.Summary()
	return &s, nil
}

func (e *engine) List(ctx context.Context) ([]store.Pokemon, error) {
	return e.store.Catalog(ctx)
}

func (e *engine) Transitions(ctx context.Context, f store.TransitionFilter) ([]evolution.Transition, error) {
	return e.store.QueryTransitions(ctx, f)
}

func (e *engine) Family(ctx context.Context, slug string) ([]string, error) {
	if _, err := e.Get(ctx, slug); err != nil {
		return nil, err
	}
	rows, err := e.store.QueryTransitions(ctx, store.TransitionFilter{})
	if err != nil {
		return nil, err
	}
	return evolution.Family(rows, slug, -1), nil
}

func (e *engine) MultiTyped(ctx context.Context) (int, error) {
	return e.store.CountMultiTyped(ctx)
}

func (e *engine) Crawls(ctx context.Context, limit int) ([]store.CrawlRun, error) {
	return e.store.ListCrawls(ctx, limit)
}

func (e *engine) ExportJSON(ctx context.Context, w io.Writer) error {
	catalog, err := e.store.Catalog(ctx)
	if err != nil {
		return err
	}
	return export.WriteJSON(w, catalog)
}

func (e *engine) ExportXLSX(ctx context.Context, w io.Writer) error {
	catalog, err := e.store.Catalog(ctx)
	if err != nil {
		return err
	}
	return export.WriteXLSX(w, catalog)
}

func (e *engine) Close() error {
	e.client.CloseIdleConnections()
	return e.store.Close()
}
