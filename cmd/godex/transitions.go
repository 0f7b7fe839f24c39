package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/godex"
	"github.com/brunobiangulo/godex/evolution"
	"github.com/brunobiangulo/godex/store"
)

var (
	minLevel   int
	sourceType string
	targetType string
)

var transitionsCmd = &cobra.Command{
	Use:   "transitions",
	Short: "List evolutions, filtered by level and type",
	Long: `List stored evolutions one per line.

Examples:
  godex transitions --min-level 30
  godex transitions --source-type Water --target-type Flying`,
	Args: cobra.NoArgs,
	RunE: runTransitions,
}

func init() {
	transitionsCmd.Flags().IntVar(&minLevel, "min-level", -1, "only evolutions above this level")
	transitionsCmd.Flags().StringVar(&sourceType, "source-type", "", "origin must have this type")
	transitionsCmd.Flags().StringVar(&targetType, "target-type", "", "destination must have this type")
}

func runTransitions(cmd *cobra.Command, args []string) error {
	engine, err := godex.New(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	f := store.TransitionFilter{SourceType: sourceType, TargetType: targetType}
	if cmd.Flags().Changed("min-level") {
		f.MinLevel = &minLevel
	}

	rows, err := engine.Transitions(cmd.Context(), f)
	if err != nil {
		return err
	}
	printTransitions(cmd.OutOrStdout(), rows)
	return nil
}

func printTransitions(w io.Writer, rows []evolution.Transition) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tMETHOD\tLEVEL\tITEM")
	for _, r := range rows {
		level := "-"
		if r.Level != nil {
			level = strconv.Itoa(*r.Level)
		}
		item := r.Item
		if item == "" {
			item = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.FromName, r.ToName, r.Method, level, item)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d evolutions\n", len(rows))
}
