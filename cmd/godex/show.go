package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/godex"
	"github.com/brunobiangulo/godex/evolution"
	"github.com/brunobiangulo/godex/export"
)

var showFromXLSX string

var showCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Print one entity and its evolution summary",
	Long: `Print a stored entity as JSON followed by its evolution summary.

With --from-xlsx the evolutions are read from an exported workbook instead of
the database.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVar(&showFromXLSX, "from-xlsx", "", "read evolutions from an exported workbook")
}

func runShow(cmd *cobra.Command, args []string) error {
	slug := args[0]
	out := cmd.OutOrStdout()

	if showFromXLSX != "" {
		f, err := os.Open(showFromXLSX)
		if err != nil {
			return err
		}
		defer f.Close()
		rows, err := export.ReadTransitions(f)
		if err != nil {
			return err
		}
		var mine []evolution.Transition
		for _, r := range rows {
			if r.FromSlug == slug || r.ToSlug == slug {
				mine = append(mine, r)
			}
		}
		if len(mine) == 0 {
			return fmt.Errorf("%w: %s has no evolutions in %s", godex.ErrNotFound, slug, showFromXLSX)
		}
		printTransitions(out, mine)
		return nil
	}

	engine, err := godex.New(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	p, err := engine.Get(cmd.Context(), slug)
	if err != nil {
		return err
	}
	if err := printJSON(out, p); err != nil {
		return err
	}
	if p.Evolution != nil {
		return printJSON(out, p.Evolution.Summary())
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
