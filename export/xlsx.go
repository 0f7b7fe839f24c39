package export

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/godex/evolution"
	"github.com/brunobiangulo/godex/store"
)

const (
	SheetPokemon    = "Pokemon"
	SheetEvolutions = "Evolutions"
)

// ErrNoSheet is returned by ReadTransitions when the workbook has no
// evolutions sheet.
var ErrNoSheet = errors.New("export: evolutions sheet not found")

var pokemonHeader = []interface{}{
	"ID", "Name", "Slug", "Link", "Types", "Height (cm)", "Weight (kg)", "Abilities", "Weaknesses",
}

var evolutionHeader = []interface{}{
	"From slug", "From ID", "From", "To slug", "To ID", "To", "To link", "Method", "Level", "Item", "Item link",
}

// WriteXLSX writes the catalog as a workbook with one sheet of entities and
// one sheet of flat transitions.
func WriteXLSX(w io.Writer, catalog []store.Pokemon) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetPokemon); err != nil {
		return fmt.Errorf("export: renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetEvolutions); err != nil {
		return fmt.Errorf("export: creating sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: creating style: %w", err)
	}

	pokemonRows := make([][]interface{}, 0, len(catalog))
	var evolutionRows [][]interface{}
	for _, p := range catalog {
		pokemonRows = append(pokemonRows, []interface{}{
			p.DexID, p.Name, p.Slug, p.Link,
			strings.Join(p.Types, ", "),
			floatCell(p.HeightCM), floatCell(p.WeightKG),
			strings.Join(sortedKeys(p.Abilities), ", "),
			strings.Join(weaknesses(p.Effectiveness), ", "),
		})
		for _, t := range p.Transitions {
			evolutionRows = append(evolutionRows, []interface{}{
				t.FromSlug, t.FromID, t.FromName, t.ToSlug, t.ToID, t.ToName, t.ToLink,
				t.Method, intCell(t.Level), t.Item, t.ItemLink,
			})
		}
	}

	if err := writeSheet(f, SheetPokemon, pokemonHeader, pokemonRows, bold); err != nil {
		return err
	}
	if err := writeSheet(f, SheetEvolutions, evolutionHeader, evolutionRows, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: writing workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("export: writing %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("export: styling %s header: %w", sheet, err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("export: writing %s row %d: %w", sheet, i+2, err)
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// ReadTransitions reads the evolutions sheet of a workbook written by
// WriteXLSX.
func ReadTransitions(r io.Reader) ([]evolution.Transition, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("export: opening workbook: %w", err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(SheetEvolutions); err != nil || idx < 0 {
		return nil, ErrNoSheet
	}

	rows, err := f.GetRows(SheetEvolutions)
	if err != nil {
		return nil, fmt.Errorf("export: reading rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]evolution.Transition, 0, len(rows)-1)
	for i, row := range rows[1:] {
		// Trailing empty cells are not returned.
		cells := make([]string, len(evolutionHeader))
		copy(cells, row)

		t := evolution.Transition{
			FromSlug: cells[0],
			FromID:   cells[1],
			FromName: cells[2],
			ToSlug:   cells[3],
			ToID:     cells[4],
			ToName:   cells[5],
			ToLink:   cells[6],
			Method:   cells[7],
			Item:     cells[9],
			ItemLink: cells[10],
		}
		if cells[8] != "" {
			level, err := strconv.Atoi(cells[8])
			if err != nil {
				return nil, fmt.Errorf("export: row %d: bad level %q: %w", i+2, cells[8], err)
			}
			t.Level = &level
		}
		out = append(out, t)
	}
	return out, nil
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func intCell(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// weaknesses lists the attacking types that are at least super effective.
func weaknesses(fx map[string]string) []string {
	var out []string
	for _, typ := range sortedKeys(fx) {
		switch fx[typ] {
		case "super effective", "extremely effective":
			out = append(out, typ)
		}
	}
	return out
}
