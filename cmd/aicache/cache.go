package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/academy-ai/aicache/pkg/models"
)

const cliActor = "cli"

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and invalidate cached responses",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics per function",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath, false)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := a.admin.Stats(context.Background())
			if err != nil {
				return err
			}
			printCacheStats(stats)
			return nil
		},
	}

	var function string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all cache entries, or those of one function",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath, false)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()
			if function != "" {
				res, err := a.admin.ClearFunction(ctx, cliActor, function)
				if err != nil {
					return err
				}
				fmt.Printf("Cleared %s entries of %s.\n", humanize.Comma(res.Count), function)
				return nil
			}
			res, err := a.admin.ClearAll(ctx, cliActor)
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %s entries.\n", humanize.Comma(res.Count))
			return nil
		},
	}
	clearCmd.Flags().StringVarP(&function, "function", "f", "", "only clear entries of this function")

	cleanCmd := &cobra.Command{
		Use:   "clean-expired",
		Short: "Delete entries whose TTL has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath, false)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := a.admin.CleanExpired(context.Background(), cliActor)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %s expired entries.\n", humanize.Comma(res.Count))
			return nil
		},
	}

	cmd.AddCommand(statsCmd, clearCmd, cleanCmd)
	return cmd
}

func printCacheStats(stats models.CacheStats) {
	fmt.Printf("Entries:        %s\n", humanize.Comma(stats.Entries))
	fmt.Printf("Hits:           %s\n", humanize.Comma(stats.TotalHits))
	fmt.Printf("Hits per entry: %.2f\n", stats.HitRate())
	if len(stats.ByFunction) == 0 {
		return
	}

	names := make([]string, 0, len(stats.ByFunction))
	for fn := range stats.ByFunction {
		names = append(names, fn)
	}
	slices.Sort(names)

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FUNCTION\tENTRIES\tHITS\tHITS/ENTRY")
	for _, fn := range names {
		s := stats.ByFunction[fn]
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n", fn, humanize.Comma(s.Count), humanize.Comma(s.TotalHits), s.HitRate())
	}
	_ = w.Flush()
}
