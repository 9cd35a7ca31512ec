// Package audit records administrative cache operations in SQLite.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/academy-ai/aicache/pkg/models"
)

// Logger writes and queries audit events in a dedicated SQLite database.
// A nil *Logger discards events.
type Logger struct {
	db     *sql.DB
	cfg    models.AuditConfig
	logger *zap.Logger
	now    func() time.Time
	done   chan struct{}
	wg     sync.WaitGroup
}

// New opens the audit SQLite database, creates the schema and starts the
// hourly retention loop.
func New(cfg models.AuditConfig, logger *zap.Logger) (*Logger, error) {
	dsn := cfg.DBPath
	if dsn != ":memory:" {
		dsn = "file:" + cfg.DBPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Logger{
		db:     db,
		cfg:    cfg,
		logger: logger.Named("audit"),
		now:    time.Now,
		done:   make(chan struct{}),
	}

	l.wg.Add(1)
	go l.retentionLoop()

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS admin_audit (
		id            TEXT PRIMARY KEY,
		operation     TEXT NOT NULL,
		function_name TEXT NOT NULL DEFAULT '',
		actor         TEXT NOT NULL DEFAULT '',
		count         INTEGER NOT NULL DEFAULT 0,
		failures      INTEGER NOT NULL DEFAULT 0,
		duration_ms   INTEGER NOT NULL DEFAULT 0,
		error         TEXT NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_operation ON admin_audit(operation)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_created ON admin_audit(created_at)`)
	return err
}

// Log inserts an event. Missing IDs and timestamps are filled in.
func (l *Logger) Log(ctx context.Context, ev models.AuditEvent) error {
	if l == nil || l.db == nil {
		return nil
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = l.now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO admin_audit
		(id, operation, function_name, actor, count, failures, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Operation), ev.FunctionName, ev.Actor,
		ev.Count, ev.Failures, ev.DurationMs, ev.Error, ev.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Query returns events matching opts, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEvent, error) {
	q := `SELECT id, operation, function_name, actor, count, failures, duration_ms, error, created_at
		FROM admin_audit WHERE 1=1`
	var args []any

	if opts.Operation != "" {
		q += " AND operation = ?"
		args = append(args, string(opts.Operation))
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UnixNano())
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var (
			e         models.AuditEvent
			op        string
			createdAt int64
		)
		if err := rows.Scan(
			&e.ID, &op, &e.FunctionName, &e.Actor,
			&e.Count, &e.Failures, &e.DurationMs, &e.Error, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.Operation = models.AdminOperation(op)
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// Stats returns event counts grouped by operation and UTC day.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT operation, date(created_at / 1000000000, 'unixepoch') AS day, count(*) AS cnt
		 FROM admin_audit GROUP BY operation, day ORDER BY day DESC, operation`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var (
			s  models.AuditStat
			op string
		)
		if err := rows.Scan(&op, &s.Day, &s.Count); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Operation = models.AdminOperation(op)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes events older than the configured retention period. A zero
// retention keeps everything.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := l.now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM admin_audit WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			n, err := l.Cleanup(context.Background())
			if err != nil {
				l.logger.Warn("audit retention failed", zap.Error(err))
			} else if n > 0 {
				l.logger.Info("audit events expired", zap.Int64("count", n))
			}
		}
	}
}
