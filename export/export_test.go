package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/godex/evolution"
	"github.com/brunobiangulo/godex/store"
)

func intp(n int) *int { return &n }

func floatp(f float64) *float64 { return &f }

func sampleCatalog() []store.Pokemon {
	return []store.Pokemon{
		{
			Slug: "flabebe", DexID: "0669", Name: "Flabébé", Link: "https://pokemondb.net/pokedex/flabebe",
			Types:         []string{"Fairy"},
			HeightCM:      floatp(10),
			WeightKG:      floatp(0.1),
			Abilities:     map[string]string{"Flower Veil": "Prevents lowering of ally Grass-type Pokémon's stats."},
			Effectiveness: map[string]string{"Poison": "super effective", "Dragon": "no effect", "Steel": "super effective"},
			Transitions: []evolution.Transition{
				{FromSlug: "flabebe", FromID: "0669", FromName: "Flabébé", ToSlug: "floette", ToID: "0670",
					ToName: "Floette", ToLink: "https://pokemondb.net/pokedex/floette", Method: "Level 19", Level: intp(19)},
			},
		},
		{
			Slug: "floette", DexID: "0670", Name: "Floette", Link: "https://pokemondb.net/pokedex/floette",
			Types: []string{"Fairy"},
			Transitions: []evolution.Transition{
				{FromSlug: "floette", FromID: "0670", FromName: "Floette", ToSlug: "florges", ToID: "0671",
					ToName: "Florges", ToLink: "https://pokemondb.net/pokedex/florges", Method: "use Shiny Stone",
					Item: "Shiny Stone", ItemLink: "https://pokemondb.net/item/shiny-stone"},
			},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleCatalog()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Flabébé") {
		t.Error("expected non-ASCII names to be written unescaped")
	}
	if !strings.Contains(out, "\n  {") {
		t.Error("expected indented output")
	}

	back, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if diff := cmp.Diff(sampleCatalog(), back); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("expected empty array, got %q", got)
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleCatalog()); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	got, err := ReadTransitions(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadTransitions: %v", err)
	}
	var want []evolution.Transition
	for _, p := range sampleCatalog() {
		want = append(want, p.Transitions...)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestXLSXPokemonSheet(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleCatalog()); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	if diff := cmp.Diff([]string{SheetPokemon, SheetEvolutions}, f.GetSheetList()); diff != "" {
		t.Errorf("sheet list mismatch (-want +got):\n%s", diff)
	}

	rows, err := f.GetRows(SheetPokemon)
	if err != nil {
		t.Fatalf("reading rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	first := rows[1]
	if first[0] != "0669" || first[1] != "Flabébé" || first[4] != "Fairy" {
		t.Errorf("unexpected first row: %v", first)
	}
	if first[8] != "Poison, Steel" {
		t.Errorf("weaknesses: got %q", first[8])
	}
}

func TestReadTransitionsMissingSheet(t *testing.T) {
	f := excelize.NewFile()
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("writing empty workbook: %v", err)
	}
	f.Close()

	if _, err := ReadTransitions(&buf); !errors.Is(err, ErrNoSheet) {
		t.Fatalf("expected ErrNoSheet, got %v", err)
	}
}
