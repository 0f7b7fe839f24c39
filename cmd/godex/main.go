// Command godex crawls the Pokédex into a local database and queries or
// exports it.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/godex"
)

var (
	configPath string
	dbPath     string
	baseURL    string
	verbose    bool

	cfg godex.Config
)

var rootCmd = &cobra.Command{
	Use:   "godex",
	Short: "Crawl, query and export Pokédex evolution data",
	Long: `godex crawls a Pokédex site, rebuilds every entity's evolution chain
from the page markup and keeps the catalog in a local SQLite database.

Available subcommands:
  crawl       - Fetch the index and every detail page
  show        - Print one entity and its evolution summary
  transitions - List evolutions, filtered by level and type
  export      - Write the catalog as JSON or XLSX`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "site to crawl (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(crawlCmd, showCmd, transitionsCmd, exportCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg = godex.DefaultConfig()
	if configPath != "" {
		loaded, err := godex.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if v := os.Getenv("GODEX_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(godex.NewLogHandler(cfg, cmd.ErrOrStderr(), level)))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
