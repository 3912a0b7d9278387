package security

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"walletbridge/internal/domain"
)

// SQLiteAuditLogger implements domain.AuditLogger on a SQLite table, for
// setups that query decisions rather than tail them.
type SQLiteAuditLogger struct {
	db        *sql.DB
	mu        sync.Mutex
	retention *RetentionPolicy
}

// NewSQLiteAuditLogger opens (or creates) the database at dbPath and runs
// the schema migration.
func NewSQLiteAuditLogger(dbPath string) (*SQLiteAuditLogger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrateAudit(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return &SQLiteAuditLogger{db: db}, nil
}

// tsLayout is fixed width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func migrateAudit(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS wallet_audit (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			ts         TEXT NOT NULL,
			type       TEXT NOT NULL,
			actor      TEXT NOT NULL DEFAULT '',
			resource   TEXT NOT NULL DEFAULT '',
			action     TEXT NOT NULL DEFAULT '',
			outcome    TEXT NOT NULL DEFAULT '',
			detail     TEXT NOT NULL DEFAULT '{}'
		)
	`); err != nil {
		return err
	}
	_, err := db.Exec("CREATE INDEX IF NOT EXISTS wallet_audit_ts ON wallet_audit (ts)")
	return err
}

// SetRetention configures the policy applied by EnforceRetention. Only
// MaxAge applies to the database.
func (s *SQLiteAuditLogger) SetRetention(policy RetentionPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retention = &policy
}

// Log inserts one event.
func (s *SQLiteAuditLogger) Log(ctx context.Context, event domain.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	detail := event.Detail
	if detail == nil {
		detail = map[string]string{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return domain.NewDomainError("SQLiteAuditLogger.Log", domain.ErrAuditWrite, err.Error())
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO wallet_audit (ts, type, actor, resource, action, outcome, detail) VALUES (?, ?, ?, ?, ?, ?, ?)",
		event.Timestamp.UTC().Format(tsLayout), string(event.Type),
		event.Actor, event.Resource, event.Action, event.Outcome, string(detailJSON),
	)
	if err != nil {
		return domain.NewDomainError("SQLiteAuditLogger.Log", domain.ErrAuditWrite, err.Error())
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *SQLiteAuditLogger) Recent(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ts, type, actor, resource, action, outcome, detail FROM wallet_audit ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var (
			e          domain.AuditEvent
			ts, typ    string
			detailJSON string
		)
		if err := rows.Scan(&ts, &typ, &e.Actor, &e.Resource, &e.Action, &e.Outcome, &detailJSON); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Type = domain.AuditEventType(typ)
		e.Timestamp, _ = time.Parse(tsLayout, ts)
		if err := json.Unmarshal([]byte(detailJSON), &e.Detail); err != nil {
			return nil, fmt.Errorf("decode audit detail: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EnforceRetention deletes events older than the policy's MaxAge.
func (s *SQLiteAuditLogger) EnforceRetention(ctx context.Context) (int, error) {
	s.mu.Lock()
	policy := s.retention
	s.mu.Unlock()

	if policy == nil || policy.MaxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-policy.MaxAge).UTC().Format(tsLayout)
	res, err := s.db.ExecContext(ctx, "DELETE FROM wallet_audit WHERE ts < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit retention: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the underlying database connection.
func (s *SQLiteAuditLogger) Close() error {
	return s.db.Close()
}
