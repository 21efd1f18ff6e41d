package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/johnstcn/freshfiction/internal/crawld"
)

func (a *app) scrapeCmd() *cobra.Command {
	var (
		dryRun   bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the trending listing and record changed metrics",
		Long: `Fetch the trending listing and the detail page of every story on it,
then store a new snapshot for each story whose metrics changed since the last run.

With --dry-run the scraped stories are printed as YAML and nothing is written.
With --interval the scrape repeats until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			scraper, err := a.newScraper()
			if err != nil {
				return err
			}

			if dryRun {
				stories := scraper.ScrapeTopStories(ctx)
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(stories); err != nil {
					return fmt.Errorf("encode stories: %w", err)
				}
				return enc.Close()
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			d, err := crawld.New(crawld.Deps{
				Scraper: scraper,
				Store:   st,
				Logger:  a.log,
			})
			if err != nil {
				return err
			}

			report := func(sum crawld.Summary) { printSummary(cmd.OutOrStdout(), sum) }
			if interval > 0 {
				return d.RunEvery(ctx, interval, report)
			}
			sum, err := d.RunOnce(ctx)
			if err != nil {
				return err
			}
			report(sum)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print scraped stories as YAML without touching the database")
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat the scrape on this interval until interrupted")
	cmd.Flags().String("base-url", "", "site to scrape (env FRESHFICTION_BASE_URL)")
	cmd.Flags().Duration("delay", 0, "pause after each request (env FRESHFICTION_DELAY)")
	return cmd
}

func printSummary(w io.Writer, sum crawld.Summary) {
	res := sum.Result
	fmt.Fprintf(w, "Scrape %s: %s stories scraped in %s\n", sum.Status, humanize.Comma(int64(sum.Scraped)), sum.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "- %s new snapshots created in this run\n", humanize.Comma(int64(res.Snapshots())))
	fmt.Fprintf(w, "- %s new stories added\n", humanize.Comma(int64(res.Added)))
	fmt.Fprintf(w, "- %s existing stories updated\n", humanize.Comma(int64(res.Updated)))
	if res.MetadataOnly > 0 {
		fmt.Fprintf(w, "- %s stories with metadata changes only\n", humanize.Comma(int64(res.MetadataOnly)))
	}
	if res.Skipped+res.Failed > 0 {
		fmt.Fprintf(w, "- %s skipped, %s failed\n", humanize.Comma(int64(res.Skipped)), humanize.Comma(int64(res.Failed)))
	}
	fmt.Fprintf(w, "Database now contains %s stories and %s snapshots\n",
		humanize.Comma(sum.Stats.TotalStories), humanize.Comma(sum.Stats.TotalSnapshots))
}
