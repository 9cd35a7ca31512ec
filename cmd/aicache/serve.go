package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/academy-ai/aicache/pkg/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		ephemeral   bool
		warmOnStart bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the cache HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath, ephemeral)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := server.New(server.Options{
				Listen:    a.cfg.Listen,
				Service:   a.service,
				Admin:     a.admin,
				Generator: a.gen,
				Gatherer:  a.registry,
				Logger:    a.logger,
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.logger.Info("starting aicache",
				zap.String("config", *configPath),
				zap.String("db_path", a.cfg.DBPath),
				zap.Bool("ephemeral", ephemeral),
				zap.Strings("functions", a.service.Policy().Functions()),
			)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.inv.RunJanitor(ctx, a.cfg.Cache.CleanupInterval)
				return nil
			})
			if warmOnStart && a.admin.WarmupJobs() > 0 {
				g.Go(func() error {
					if _, err := a.admin.Warmup(ctx, "startup"); err != nil && ctx.Err() == nil {
						a.logger.Warn("startup warmup failed", zap.Error(err))
					}
					return nil
				})
			}
			g.Go(func() error {
				return srv.ListenAndServe(ctx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "keep the cache in memory instead of SQLite")
	cmd.Flags().BoolVar(&warmOnStart, "warmup", false, "run the configured warmup jobs at startup")
	return cmd
}
