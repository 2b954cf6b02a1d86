package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
)

// Compile-time interface check.
var _ domain.Journal = (*SQLiteJournal)(nil)

// SQLiteJournal persists announcement outcomes so they survive restarts.
type SQLiteJournal struct {
	db      *sql.DB
	log     *logger.Logger
	maxRows int
}

// OpenSQLite opens (or creates) the journal database at path. maxRows
// bounds the table; older rows are pruned on write. maxRows <= 0 keeps
// everything.
func OpenSQLite(ctx context.Context, path string, maxRows int, log *logger.Logger) (*SQLiteJournal, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	j := &SQLiteJournal{db: db, log: log, maxRows: maxRows}
	if err := j.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	log.Debug("journal: opened %s", path)
	return j, nil
}

func (j *SQLiteJournal) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS announcements (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    text TEXT NOT NULL,
    priority TEXT NOT NULL,
    outcome TEXT NOT NULL,
    transport TEXT,
    detail TEXT,
    queued_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_announcements_finished ON announcements(finished_at);
`
	_, err := j.db.ExecContext(ctx, ddl)
	return err
}

// Record inserts entry and prunes rows beyond maxRows.
func (j *SQLiteJournal) Record(ctx context.Context, entry domain.JournalEntry) error {
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO announcements(id, text, priority, outcome, transport, detail, queued_at, finished_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Text, entry.Priority, entry.Outcome.String(), entry.Transport, entry.Detail,
		entry.QueuedAt.UnixNano(), entry.FinishedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert announcement: %w", err)
	}

	if j.maxRows > 0 {
		if _, err := j.db.ExecContext(ctx,
			`DELETE FROM announcements WHERE seq <= (SELECT MAX(seq) FROM announcements) - ?`, j.maxRows); err != nil {
			j.log.Warn("journal: prune failed: %v", err)
		}
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 uses 100.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, text, priority, outcome, transport, detail, queued_at, finished_at
		 FROM announcements ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query announcements: %w", err)
	}
	defer rows.Close()

	var out []domain.JournalEntry
	for rows.Next() {
		var (
			e                 domain.JournalEntry
			outcome           string
			transport, detail sql.NullString
			queued, finished  int64
		)
		if err := rows.Scan(&e.ID, &e.Text, &e.Priority, &outcome, &transport, &detail, &queued, &finished); err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		e.Outcome = domain.ParseOutcome(outcome)
		e.Transport = transport.String
		e.Detail = detail.String
		e.QueuedAt = time.Unix(0, queued)
		e.FinishedAt = time.Unix(0, finished)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
