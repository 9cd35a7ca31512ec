package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/academy-ai/aicache/pkg/audit"
	"github.com/academy-ai/aicache/pkg/logging"
	"github.com/academy-ai/aicache/pkg/models"
)

func newAuditCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the admin audit log",
	}

	cmd.AddCommand(
		newAuditListCmd(configPath),
		newAuditStatsCmd(configPath),
		newAuditCleanupCmd(configPath),
	)
	return cmd
}

func newAuditListCmd(configPath *string) *cobra.Command {
	var (
		operation string
		since     string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent admin operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{
				Operation: models.AdminOperation(operation),
				Limit:     limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			events, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Print(formatAuditEvents(events, time.Now()))
			return nil
		},
	}

	cmd.Flags().StringVar(&operation, "operation", "", "filter by operation (clear_all, clear_function, clean_expired, warmup)")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max events to return")
	return cmd
}

func newAuditStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show admin operation counts by day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Print(formatAuditStats(stats))
			return nil
		},
	}
}

func newAuditCleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete audit events older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d audit events.\n", deleted)
			return nil
		},
	}
}

func openAuditLogger(configPath string) (*audit.Logger, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Audit.Enabled {
		return nil, nil, errors.New("audit log is disabled in config")
	}
	if cfg.Audit.DBPath == "" {
		cfg.Audit.DBPath = cfg.DBPath
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	l, err := audit.New(cfg.Audit, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit db: %w", err)
	}
	return l, func() {
		_ = l.Close()
		_ = logger.Sync()
	}, nil
}

func formatAuditEvents(events []models.AuditEvent, now time.Time) string {
	if len(events) == 0 {
		return "No audit events found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-15s %-20s %-14s %8s %8s %9s %-16s\n",
		"OPERATION", "FUNCTION", "ACTOR", "COUNT", "FAILURES", "DURATION", "WHEN")
	b.WriteString(strings.Repeat("-", 96) + "\n")
	for _, e := range events {
		fn := e.FunctionName
		if fn == "" {
			fn = "-"
		}
		fmt.Fprintf(&b, "%-15s %-20s %-14s %8d %8d %7dms %-16s\n",
			e.Operation, fn, e.Actor, e.Count, e.Failures, e.DurationMs,
			humanize.RelTime(e.CreatedAt, now, "ago", "from now"))
		if e.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", e.Error)
		}
	}
	return b.String()
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No audit stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-15s %-12s %8s\n", "OPERATION", "DAY", "COUNT")
	b.WriteString(strings.Repeat("-", 37) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-15s %-12s %8d\n", s.Operation, s.Day, s.Count)
	}
	return b.String()
}
