package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newWarmupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "warmup",
		Short: "Precompute the configured warmup jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath, false)
			if err != nil {
				return err
			}
			defer cleanup()

			if a.admin.WarmupJobs() == 0 {
				fmt.Println("No warmup jobs configured.")
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := a.admin.Warmup(ctx, cliActor)
			fmt.Printf("Run:       %s\n", res.RunID)
			fmt.Printf("Success:   %d\n", res.TotalSuccess)
			fmt.Printf("Failure:   %d\n", res.TotalFailure)
			fmt.Printf("Skipped:   %d\n", res.Skipped)
			fmt.Printf("Abandoned: %d\n", res.Abandoned)
			fmt.Printf("Duration:  %s\n", res.Duration.Round(time.Millisecond))
			for _, f := range res.Failures {
				fmt.Printf("  ! %s %s: %s\n", f.FunctionName, f.Params, f.Error)
			}
			return err
		},
	}
}
