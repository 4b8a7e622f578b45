package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	createDocumentsSQL = `
CREATE TABLE IF NOT EXISTS documents (
	name       TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

	selectDocumentSQL = `SELECT body FROM documents WHERE name = ?`

	upsertDocumentSQL = `
INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`
)

// SQLiteStore keeps documents as rows of a single table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and enables WAL journal mode.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(createDocumentsSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Read(name string) ([]byte, error) {
	var body string
	err := s.db.QueryRow(selectDocumentSQL, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	return []byte(body), nil
}

func (s *SQLiteStore) Write(name string, data []byte) error {
	if _, err := s.db.Exec(upsertDocumentSQL, name, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
