package cli

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forPelevin/mdvid/internal/pipeline"
	"github.com/forPelevin/mdvid/internal/titlecard"
)

func newCacheCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the title-card cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached title cards",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				root, err := pipeline.CacheRoot(a.cfg.TitleCards.CacheDir)
				if err != nil {
					return err
				}
				entries, err := titlecard.List(root)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintf(out, "no title cards in %s\n", root)
					return nil
				}
				sort.Slice(entries, func(i, j int) bool { return entries[i].Modified.After(entries[j].Modified) })

				rows := make([][]string, 0, len(entries))
				var total int64
				for _, e := range entries {
					total += e.Size
					stage := e.Stage
					if stage == "" {
						stage = "empty"
					}
					rows = append(rows, []string{e.Key[:min(12, len(e.Key))], stage, humanize.Bytes(uint64(e.Size)), humanize.Time(e.Modified)})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Key", "Stage", "Size", "Modified"},
					rows,
					2,
				))
				fmt.Fprintf(out, "%d entries, %s in %s\n", len(entries), humanize.Bytes(uint64(total)), root)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove cached title cards not in use by a running render",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				root, err := pipeline.CacheRoot(a.cfg.TitleCards.CacheDir)
				if err != nil {
					return err
				}
				removed, skipped, err := titlecard.Clear(root)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d, skipped %d busy\n", removed, skipped)
				return nil
			},
		},
	)
	return cmd
}
