// Package memoryjournal persists butler memory records in a local sqlite
// database, giving LOG_MEMORY actions a durable, queryable backing store.
package memoryjournal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/greybell/butler/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_records (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	scope      TEXT NOT NULL,
	kind       TEXT NOT NULL,
	content    TEXT NOT NULL,
	tags       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_scope ON memory_records(scope);
`

// Journal is a sqlite-backed memory store.
type Journal struct {
	db *sql.DB
}

var _ domain.MemoryStore = (*Journal)(nil)

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Add appends a record to the journal.
func (j *Journal) Add(record domain.MemoryRecord) error {
	_, err := j.db.Exec(
		`INSERT INTO memory_records (scope, kind, content, tags, created_at) VALUES (?, ?, ?, ?, ?)`,
		record.Scope, record.Kind, record.Content,
		strings.Join(record.Tags, ","),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert memory record: %w", err)
	}
	return nil
}

// Recent returns up to limit records for the scope, newest first. A zero
// scope matches every record.
func (j *Journal) Recent(scope string, limit int) ([]domain.MemoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT scope, kind, content, tags FROM memory_records`
	args := []interface{}{}
	if scope != "" {
		query += ` WHERE scope = ?`
		args = append(args, scope)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memory records: %w", err)
	}
	defer rows.Close()

	var records []domain.MemoryRecord
	for rows.Next() {
		var rec domain.MemoryRecord
		var tags string
		if err := rows.Scan(&rec.Scope, &rec.Kind, &rec.Content, &tags); err != nil {
			return nil, fmt.Errorf("scan memory record: %w", err)
		}
		if tags != "" {
			rec.Tags = strings.Split(tags, ",")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
