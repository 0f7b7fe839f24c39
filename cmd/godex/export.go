package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/godex"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the catalog as JSON or XLSX",
	Long: `Write the deduplicated, dex-ordered catalog.

The format defaults to the --out extension, or JSON on stdout.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "json or xlsx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
}

func exportFormatFor(format, out string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
		if format == "" {
			format = "json"
		}
	}
	switch format {
	case "json", "xlsx":
		return format, nil
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := exportFormatFor(exportFormat, exportOut)
	if err != nil {
		return err
	}

	engine, err := godex.New(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if format == "xlsx" {
		err = engine.ExportXLSX(cmd.Context(), w)
	} else {
		err = engine.ExportJSON(cmd.Context(), w)
	}
	if err != nil {
		return err
	}
	if exportOut != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", exportOut)
	}
	return nil
}
