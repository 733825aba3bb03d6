package task

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLStore keeps summaries in the task_sessions table.
type MySQLStore struct {
	db *sql.DB
}

var _ Store = (*MySQLStore)(nil)

// NewMySQLStore opens the database, verifies the connection and creates the
// schema when missing.
func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql dsn must not be empty")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	store := NewMySQLStoreFromDB(db)
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewMySQLStoreFromDB wraps an open database; the schema must already exist.
func NewMySQLStoreFromDB(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (s *MySQLStore) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS task_sessions (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        task_id BIGINT NOT NULL,
        summary TEXT NOT NULL,
        created_at BIGINT NOT NULL,
        INDEX idx_task_sessions_task (task_id, id)
)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init task_sessions: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *MySQLStore) Load(ctx context.Context, taskID int64) ([]SessionSummary, error) {
	if err := validateID(taskID); err != nil {
		return nil, err
	}
	const stmt = `SELECT summary, created_at FROM task_sessions WHERE task_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, stmt, taskID, MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("mysql load task %d: %w", taskID, err)
	}
	defer rows.Close()

	var newestFirst []SessionSummary
	for rows.Next() {
		var (
			summary   string
			createdAt int64
		)
		if err := rows.Scan(&summary, &createdAt); err != nil {
			return nil, fmt.Errorf("mysql scan task %d: %w", taskID, err)
		}
		newestFirst = append(newestFirst, SessionSummary{Timestamp: time.Unix(0, createdAt).UTC(), Summary: summary})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql load task %d: %w", taskID, err)
	}

	out := make([]SessionSummary, len(newestFirst))
	for i, s := range newestFirst {
		out[len(newestFirst)-1-i] = s
	}
	return out, nil
}

// Append implements Store. Insert and eviction share a transaction.
func (s *MySQLStore) Append(ctx context.Context, taskID int64, summary SessionSummary) (err error) {
	if err := validateID(taskID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mysql begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ts := summary.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO task_sessions (task_id, summary, created_at) VALUES (?, ?, ?)`,
		taskID, summary.Summary, ts.UnixNano(),
	); err != nil {
		return fmt.Errorf("mysql append task %d: %w", taskID, err)
	}

	const evict = `DELETE FROM task_sessions WHERE task_id = ? AND id NOT IN (
        SELECT id FROM (
            SELECT id FROM task_sessions WHERE task_id = ? ORDER BY id DESC LIMIT ?
        ) AS keep_rows
)`
	if _, err = tx.ExecContext(ctx, evict, taskID, taskID, MaxEntries); err != nil {
		return fmt.Errorf("mysql evict task %d: %w", taskID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("mysql commit task %d: %w", taskID, err)
	}
	return nil
}

// Close closes the database.
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
