package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print how many stories and snapshots are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.GetStats(ctx)
			if err != nil {
				return fmt.Errorf("read stats: %w", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Stories:              %s\n", humanize.Comma(stats.TotalStories))
			fmt.Fprintf(w, "Snapshots:            %s\n", humanize.Comma(stats.TotalSnapshots))
			fmt.Fprintf(w, "Stories with history: %s\n", humanize.Comma(stats.StoriesWithHistory))
			return nil
		},
	}
}
