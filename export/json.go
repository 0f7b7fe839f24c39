// Package export writes the catalog out as JSON or as an XLSX workbook.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/brunobiangulo/godex/store"
)

// WriteJSON writes the catalog as an indented JSON array. Non-ASCII names
// are written as-is.
func WriteJSON(w io.Writer, catalog []store.Pokemon) error {
	if catalog == nil {
		catalog = []store.Pokemon{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(catalog); err != nil {
		return fmt.Errorf("export: encoding json: %w", err)
	}
	return nil
}

// ReadJSON decodes a catalog written by WriteJSON.
func ReadJSON(r io.Reader) ([]store.Pokemon, error) {
	var catalog []store.Pokemon
	if err := json.NewDecoder(r).Decode(&catalog); err != nil {
		return nil, fmt.Errorf("export: decoding json: %w", err)
	}
	return catalog, nil
}
