//go:build cgo

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/brunobiangulo/godex/evolution"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func intp(n int) *int { return &n }

func floatp(f float64) *float64 { return &f }

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}

	var version int
	if err := s.DB().QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("reading schema version: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("expected schema version %d, got %d", len(migrations), version)
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	s, err := New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s.Close()
}

func TestDexNumber(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"0133", intp(133)},
		{"#0001", intp(1)},
		{" 25 ", intp(25)},
		{"", nil},
		{"n/a", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, DexNumber(tt.in)); diff != "" {
			t.Errorf("DexNumber(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

// ---------------------------------------------------------------------------
// Pokemon CRUD
// ---------------------------------------------------------------------------

func eevee() Pokemon {
	self := evolution.Stage{Identity: "eevee", DisplayID: "0133", DisplayName: "Eevee", Reference: "https://pokemondb.net/pokedex/eevee"}
	vaporeon := evolution.Stage{Identity: "vaporeon", DisplayID: "0134", DisplayName: "Vaporeon", Reference: "https://pokemondb.net/pokedex/vaporeon"}
	umbreon := evolution.Stage{Identity: "umbreon", DisplayID: "0197", DisplayName: "Umbreon", Reference: "https://pokemondb.net/pokedex/umbreon"}
	return Pokemon{
		Slug:          "eevee",
		DexID:         "0133",
		Name:          "Eevee",
		Link:          "https://pokemondb.net/pokedex/eevee",
		Types:         []string{"Normal"},
		HeightCM:      floatp(30),
		WeightKG:      floatp(6.5),
		Effectiveness: map[string]string{"Fighting": "super effective", "Ghost": "no effect"},
		Abilities:     map[string]string{"Run Away": "Enables a sure getaway from wild Pokémon."},
		Evolution: &evolution.Record{
			Self: self,
			Successors: []evolution.Successor{
				{To: vaporeon, Condition: "use Water Stone", Item: "Water Stone", ItemReference: "https://pokemondb.net/item/water-stone"},
				{To: umbreon, Condition: "high Friendship, Nighttime"},
			},
			Related: []evolution.Stage{vaporeon, umbreon},
		},
	}
}

func TestUpsertAndGetPokemon(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertPokemon(ctx, eevee()); err != nil {
		t.Fatalf("upserting: %v", err)
	}

	got, err := s.GetPokemon(ctx, "eevee")
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if got.DexNumber == nil || *got.DexNumber != 133 {
		t.Errorf("expected dex number 133, got %v", got.DexNumber)
	}
	if diff := cmp.Diff([]string{"Normal"}, got.Types); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
	if got.HeightCM == nil || *got.HeightCM != 30 {
		t.Errorf("height: got %v", got.HeightCM)
	}
	if got.Effectiveness["Ghost"] != "no effect" {
		t.Errorf("effectiveness not round-tripped: %v", got.Effectiveness)
	}
	if diff := cmp.Diff(eevee().Evolution, got.Evolution); diff != "" {
		t.Errorf("evolution mismatch (-want +got):\n%s", diff)
	}

	if len(got.Transitions) != 2 {
		t.Fatalf("expected 2 transitions derived from the record, got %d", len(got.Transitions))
	}
	first := got.Transitions[0]
	if first.FromSlug != "eevee" || first.FromName != "Eevee" || first.ToSlug != "vaporeon" || first.Item != "Water Stone" {
		t.Errorf("unexpected first transition: %+v", first)
	}
	if got.Transitions[1].Item != "" || got.Transitions[1].Level != nil {
		t.Errorf("umbreon transition should carry neither item nor level: %+v", got.Transitions[1])
	}
}

func TestUpsertReplacesChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := eevee()
	if err := s.UpsertPokemon(ctx, p); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	p.Types = []string{"Normal", "Fairy"}
	p.Evolution.Successors = p.Evolution.Successors[:1]
	p.Transitions = nil
	if err := s.UpsertPokemon(ctx, p); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.GetPokemon(ctx, "eevee")
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if diff := cmp.Diff([]string{"Normal", "Fairy"}, got.Types); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
	if len(got.Transitions) != 1 {
		t.Errorf("expected transitions to be replaced, got %d", len(got.Transitions))
	}
}

func TestUpsertRejectsEmptySlug(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertPokemon(context.Background(), Pokemon{Name: "MissingNo."}); err == nil {
		t.Fatal("expected error for empty slug")
	}
}

func TestGetPokemonNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetPokemon(context.Background(), "missingno")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDeletePokemonCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertPokemon(ctx, eevee()); err != nil {
		t.Fatalf("upserting: %v", err)
	}
	if err := s.DeletePokemon(ctx, "eevee"); err != nil {
		t.Fatalf("deleting: %v", err)
	}

	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM transitions").Scan(&n); err != nil {
		t.Fatalf("counting transitions: %v", err)
	}
	if n != 0 {
		t.Errorf("expected transitions to cascade, %d left", n)
	}
	if err := s.DeletePokemon(ctx, "eevee"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second delete: expected sql.ErrNoRows, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func TestCatalogDedupAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows := []Pokemon{
		{Slug: "venusaur", DexID: "0003", Name: "Venusaur", Link: "/pokedex/venusaur"},
		{Slug: "unknown", Name: "Unknown", Link: "/pokedex/unknown"},
		{Slug: "bulbasaur", DexID: "0001", Name: "Bulbasaur", Link: "/pokedex/bulbasaur"},
		{Slug: "venusaur-mega", DexID: "0003", Name: "Mega Venusaur", Link: "/pokedex/venusaur-mega"},
	}
	for _, p := range rows {
		if err := s.UpsertPokemon(ctx, p); err != nil {
			t.Fatalf("upserting %s: %v", p.Slug, err)
		}
	}

	got, err := s.Catalog(ctx)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	var slugs []string
	for _, p := range got {
		slugs = append(slugs, p.Slug)
	}
	want := []string{"bulbasaur", "venusaur-mega", "unknown"}
	if diff := cmp.Diff(want, slugs); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestCatalogPrefersLastUpdated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := Pokemon{Slug: "venusaur", DexID: "0003", Name: "Venusaur", Link: "/pokedex/venusaur"}
	mega := Pokemon{Slug: "venusaur-mega", DexID: "0003", Name: "Mega Venusaur", Link: "/pokedex/venusaur-mega"}
	for _, p := range []Pokemon{base, mega, base} {
		if err := s.UpsertPokemon(ctx, p); err != nil {
			t.Fatalf("upserting %s: %v", p.Slug, err)
		}
	}

	got, err := s.Catalog(ctx)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(got) != 1 || got[0].Slug != "venusaur" {
		t.Errorf("expected the re-crawled venusaur to win, got %+v", got)
	}
}

// ---------------------------------------------------------------------------
// Transition queries
// ---------------------------------------------------------------------------

func seedChain(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	stage := func(slug, id, name string) evolution.Stage {
		return evolution.Stage{Identity: slug, DisplayID: id, DisplayName: name, Reference: "/pokedex/" + slug}
	}
	record := func(self evolution.Stage, succ ...evolution.Successor) *evolution.Record {
		return &evolution.Record{Self: self, Successors: succ}
	}
	charmander := stage("charmander", "0004", "Charmander")
	charmeleon := stage("charmeleon", "0005", "Charmeleon")
	charizard := stage("charizard", "0006", "Charizard")
	magikarp := stage("magikarp", "0129", "Magikarp")
	gyarados := stage("gyarados", "0130", "Gyarados")

	rows := []Pokemon{
		{Slug: "charmeleon", DexID: "0005", Name: "Charmeleon", Link: "/pokedex/charmeleon", Types: []string{"Fire"},
			Evolution: record(charmeleon, evolution.Successor{To: charizard, Condition: "Level 36", Level: intp(36)})},
		{Slug: "charmander", DexID: "0004", Name: "Charmander", Link: "/pokedex/charmander", Types: []string{"Fire"},
			Evolution: record(charmander, evolution.Successor{To: charmeleon, Condition: "Level 16", Level: intp(16)})},
		{Slug: "charizard", DexID: "0006", Name: "Charizard", Link: "/pokedex/charizard", Types: []string{"Fire", "Flying"},
			Evolution: record(charizard)},
		{Slug: "magikarp", DexID: "0129", Name: "Magikarp", Link: "/pokedex/magikarp", Types: []string{"Water"},
			Evolution: record(magikarp, evolution.Successor{To: gyarados, Condition: "Level 20", Level: intp(20)})},
		{Slug: "gyarados", DexID: "0130", Name: "Gyarados", Link: "/pokedex/gyarados", Types: []string{"Water", "Flying"},
			Evolution: record(gyarados)},
	}
	for _, p := range rows {
		if err := s.UpsertPokemon(ctx, p); err != nil {
			t.Fatalf("upserting %s: %v", p.Slug, err)
		}
	}
}

func TestQueryTransitions(t *testing.T) {
	s := newTestStore(t)
	seedChain(t, s)
	ctx := context.Background()

	pairs := func(ts []evolution.Transition) []string {
		var out []string
		for _, tr := range ts {
			out = append(out, tr.FromSlug+">"+tr.ToSlug)
		}
		return out
	}

	tests := []struct {
		name   string
		filter TransitionFilter
		want   []string
	}{
		{"all", TransitionFilter{}, []string{"charmander>charmeleon", "charmeleon>charizard", "magikarp>gyarados"}},
		{"level strictly above", TransitionFilter{MinLevel: intp(20)}, []string{"charmeleon>charizard"}},
		{"source type", TransitionFilter{SourceType: "water"}, []string{"magikarp>gyarados"}},
		{"target type", TransitionFilter{TargetType: "Flying"}, []string{"charmeleon>charizard", "magikarp>gyarados"}},
		{"combined", TransitionFilter{MinLevel: intp(15), SourceType: "Fire", TargetType: "Fire"}, []string{"charmander>charmeleon", "charmeleon>charizard"}},
		{"no match", TransitionFilter{SourceType: "Ghost"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryTransitions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if diff := cmp.Diff(tt.want, pairs(got)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryTransitionsCarriesOrigin(t *testing.T) {
	s := newTestStore(t)
	seedChain(t, s)

	got, err := s.QueryTransitions(context.Background(), TransitionFilter{SourceType: "Water"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	want := evolution.Transition{
		FromSlug: "magikarp", FromID: "0129", FromName: "Magikarp",
		ToSlug: "gyarados", ToID: "0130", ToName: "Gyarados", ToLink: "/pokedex/gyarados",
		Method: "Level 20", Level: intp(20),
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestCountMultiTyped(t *testing.T) {
	s := newTestStore(t)
	seedChain(t, s)

	n, err := s.CountMultiTyped(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 multi-typed entities, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Crawl log
// ---------------------------------------------------------------------------

func TestCrawlRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.StartCrawl(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if id == "" {
		t.Fatal("expected a crawl id")
	}
	if err := s.FinishCrawl(ctx, id, CrawlStats{Pages: 10, Entities: 8, Failures: 1, LastError: "fetch: 503"}); err != nil {
		t.Fatalf("finish: %v", err)
	}

	runs, err := s.ListCrawls(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	r := runs[0]
	if r.ID != id || r.Status != "partial" || r.Pages != 10 || r.Entities != 8 || r.LastError != "fetch: 503" {
		t.Errorf("unexpected run: %+v", r)
	}
	if r.FinishedAt == "" {
		t.Error("expected finished_at to be set")
	}
}
