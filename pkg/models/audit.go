package models

import "time"

// AdminOperation names an administrative cache operation.
type AdminOperation string

const (
	OpClearAll      AdminOperation = "clear_all"
	OpClearFunction AdminOperation = "clear_function"
	OpCleanExpired  AdminOperation = "clean_expired"
	OpWarmup        AdminOperation = "warmup"
)

// AuditEvent records one administrative operation against the cache.
type AuditEvent struct {
	ID           string         `json:"id"`
	Operation    AdminOperation `json:"operation"`
	FunctionName string         `json:"function_name,omitempty"`
	Actor        string         `json:"actor"`
	Count        int64          `json:"count"`
	Failures     int64          `json:"failures"`
	DurationMs   int64          `json:"duration_ms"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditConfig controls the admin audit log.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// AuditQueryOpts specifies filters for querying audit events.
type AuditQueryOpts struct {
	Operation AdminOperation
	Since     time.Time
	Limit     int
}

// AuditStat is an aggregate count of audit events per operation and day.
type AuditStat struct {
	Operation AdminOperation `json:"operation"`
	Day       string         `json:"day"`
	Count     int64          `json:"count"`
}
