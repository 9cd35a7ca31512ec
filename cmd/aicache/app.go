package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/academy-ai/aicache/pkg/admin"
	"github.com/academy-ai/aicache/pkg/audit"
	"github.com/academy-ai/aicache/pkg/cache"
	"github.com/academy-ai/aicache/pkg/cache/memory"
	cachesqlite "github.com/academy-ai/aicache/pkg/cache/sqlite"
	"github.com/academy-ai/aicache/pkg/config"
	"github.com/academy-ai/aicache/pkg/generator"
	"github.com/academy-ai/aicache/pkg/logging"
	"github.com/academy-ai/aicache/pkg/metrics"
	"github.com/academy-ai/aicache/pkg/warmup"
)

// app holds every component built from one configuration.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	service  *cache.Service
	inv      *cache.Invalidator
	reporter *cache.Reporter
	gen      *generator.Client
	admin    *admin.Admin
	auditor  *audit.Logger
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// openApp wires the cache stack. With ephemeral set the cache and audit log
// live in memory. The returned cleanup closes everything.
func openApp(configPath string, ephemeral bool) (*app, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	table, err := cfg.PolicyTable()
	if err != nil {
		return nil, nil, fmt.Errorf("init policy table: %w", err)
	}

	var store cache.Store
	if ephemeral {
		store = memory.New()
	} else {
		store, err = cachesqlite.New(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("init cache store: %w", err)
		}
	}

	var auditor *audit.Logger
	if cfg.Audit.Enabled {
		auditCfg := cfg.Audit
		switch {
		case ephemeral:
			auditCfg.DBPath = ":memory:"
		case auditCfg.DBPath == "":
			auditCfg.DBPath = cfg.DBPath
		}
		auditor, err = audit.New(auditCfg, logger)
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("init audit log: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	opts := []cache.Option{cache.WithLogger(logger), cache.WithMetrics(m)}
	if cfg.Cache.SingleFlight {
		opts = append(opts, cache.WithSingleFlight())
	}
	svc := cache.NewService(store, table, opts...)
	inv := cache.NewInvalidator(store, logger, m, nil)
	rep := cache.NewReporter(store)
	reg.MustRegister(metrics.NewStatsCollector(rep, 0))

	gen := generator.New(cfg.Generator, logger)
	jobs, err := warmup.FromConfig(cfg.Warmup.Jobs, gen.ComputeFunc)
	if err != nil {
		_ = auditor.Close()
		_ = store.Close()
		return nil, nil, err
	}
	scheduler := warmup.New(svc,
		warmup.WithConcurrency(cfg.Warmup.Concurrency),
		warmup.WithRequestsPerMinute(cfg.Warmup.RequestsPerMinute),
		warmup.WithLogger(logger),
		warmup.WithMetrics(m),
	)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		service:  svc,
		inv:      inv,
		reporter: rep,
		gen:      gen,
		auditor:  auditor,
		admin: admin.New(admin.Deps{
			Invalidator: inv,
			Reporter:    rep,
			Scheduler:   scheduler,
			Jobs:        jobs,
			Auditor:     auditor,
			Logger:      logger,
		}),
	}

	cleanup := func() {
		err := errors.Join(auditor.Close(), svc.Close())
		if err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return a, cleanup, nil
}
