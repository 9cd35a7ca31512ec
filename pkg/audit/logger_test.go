package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/academy-ai/aicache/pkg/models"
)

func tempCfg(t *testing.T) models.AuditConfig {
	t.Helper()
	return models.AuditConfig{
		Enabled:       true,
		DBPath:        filepath.Join(t.TempDir(), "audit_test.db"),
		RetentionDays: 90,
	}
}

func mustNew(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	l, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleEvent() models.AuditEvent {
	return models.AuditEvent{
		Operation:    models.OpClearFunction,
		FunctionName: "opponentAnalysis",
		Actor:        "cli",
		Count:        12,
		DurationMs:   3,
	}
}

func TestLogAndQuery(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	if err := l.Log(ctx, sampleEvent()); err != nil {
		t.Fatalf("Log: %v", err)
	}

	events, err := l.Query(ctx, models.AuditQueryOpts{Operation: models.OpClearFunction})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" {
		t.Error("expected generated ID")
	}
	if e.FunctionName != "opponentAnalysis" || e.Count != 12 || e.Actor != "cli" {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be filled in")
	}
}

func TestQueryFilters(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()
	now := time.Now()

	old := sampleEvent()
	old.CreatedAt = now.Add(-48 * time.Hour)
	_ = l.Log(ctx, old)

	wipe := models.AuditEvent{Operation: models.OpClearAll, Actor: "http", Count: 40, CreatedAt: now}
	_ = l.Log(ctx, wipe)

	events, err := l.Query(ctx, models.AuditQueryOpts{Since: now.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 || events[0].Operation != models.OpClearAll {
		t.Fatalf("since filter: got %+v", events)
	}

	events, err = l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Operation != models.OpClearAll {
		t.Errorf("expected newest first, got %s", events[0].Operation)
	}

	events, _ = l.Query(ctx, models.AuditQueryOpts{Limit: 1})
	if len(events) != 1 {
		t.Errorf("limit: got %d events", len(events))
	}
}

func TestCleanup(t *testing.T) {
	cfg := tempCfg(t)
	cfg.RetentionDays = 1
	l := mustNew(t, cfg)
	ctx := context.Background()

	stale := sampleEvent()
	stale.CreatedAt = time.Now().AddDate(0, 0, -2)
	_ = l.Log(ctx, stale)
	_ = l.Log(ctx, sampleEvent())

	deleted, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
}

func TestCleanupZeroRetentionKeepsAll(t *testing.T) {
	cfg := tempCfg(t)
	cfg.RetentionDays = 0
	l := mustNew(t, cfg)
	ctx := context.Background()

	stale := sampleEvent()
	stale.CreatedAt = time.Now().AddDate(-1, 0, 0)
	_ = l.Log(ctx, stale)

	deleted, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected nothing deleted, got %d", deleted)
	}
}

func TestStats(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	_ = l.Log(ctx, sampleEvent())
	_ = l.Log(ctx, sampleEvent())

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 stat row, got %d", len(stats))
	}
	if stats[0].Count != 2 || stats[0].Operation != models.OpClearFunction {
		t.Errorf("unexpected stat: %+v", stats[0])
	}
	if stats[0].Day != time.Now().UTC().Format("2006-01-02") {
		t.Errorf("unexpected day %q", stats[0].Day)
	}
}

func TestNilLoggerSafe(t *testing.T) {
	var l *Logger
	if err := l.Log(context.Background(), sampleEvent()); err != nil {
		t.Errorf("nil logger should be safe: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil close: %v", err)
	}
}

func TestNewInvalidPath(t *testing.T) {
	cfg := models.AuditConfig{
		Enabled: true,
		DBPath:  filepath.Join(os.TempDir(), "nonexistent", "deep", "path", "audit.db"),
	}
	_, err := New(cfg, nil)
	if err == nil {
		t.Error("expected error for invalid path")
	}
}
