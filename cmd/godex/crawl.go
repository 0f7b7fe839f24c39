package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/godex"
)

var (
	crawlLimit       int
	crawlNoAbilities bool
	crawlURL         string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [slug...]",
	Short: "Fetch the index and every detail page",
	Long: `Fetch the index page, then every detail page it lists, and store each
entity with its resolved evolution record.

With slugs as arguments only those entities are crawled. With --url a single
detail page is crawled without reading the index.`,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().IntVar(&crawlLimit, "limit", 0, "stop after the first N index entries")
	crawlCmd.Flags().BoolVar(&crawlNoAbilities, "no-abilities", false, "skip ability pages")
	crawlCmd.Flags().StringVar(&crawlURL, "url", "", "crawl a single detail page")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	engine, err := godex.New(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	var opts []godex.CrawlOption
	if crawlNoAbilities {
		opts = append(opts, godex.WithoutAbilities())
	}

	if crawlURL != "" {
		p, err := engine.CrawlEntity(cmd.Context(), crawlURL, opts...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%s), %d evolutions\n", p.Name, p.Slug, len(p.Transitions))
		return nil
	}

	if crawlLimit > 0 {
		opts = append(opts, godex.WithLimit(crawlLimit))
	}
	if len(args) > 0 {
		opts = append(opts, godex.WithSlugs(args...))
	}

	res, err := engine.Crawl(cmd.Context(), opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d pages, %d entities, %d failures in %s\n",
		res.RunID, res.Pages, res.Entities, res.Failures, res.Elapsed.Round(time.Millisecond))
	return nil
}
