package publisher

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	stage      TEXT    NOT NULL,
	payload    BLOB    NOT NULL,
	created_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_stage ON records(stage, id);
`

// SQLitePublisher archives published records in a local SQLite file
type SQLitePublisher struct {
	db        *sql.DB
	maxLength int
}

// NewSQLitePublisher opens (creating if needed) the database at path
func NewSQLitePublisher(path string, maxLength int) (*SQLitePublisher, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time keeps SQLite away from SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLitePublisher{db: db, maxLength: maxLength}, nil
}

// Publish stores one record for stage
func (p *SQLitePublisher) Publish(stage string, message []byte) error {
	_, err := p.db.Exec(
		`INSERT INTO records (stage, payload, created_at) VALUES (?, ?, ?)`,
		stage, message, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// TrimStreams keeps only the newest maxLength records per stage
func (p *SQLitePublisher) TrimStreams() error {
	if p.maxLength <= 0 {
		return nil
	}
	_, err := p.db.Exec(`
		DELETE FROM records WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY stage ORDER BY id DESC) AS rn
				FROM records
			) WHERE rn > ?
		)`, p.maxLength)
	return err
}

// Records returns the payloads stored for stage, oldest first
func (p *SQLitePublisher) Records(stage string) ([][]byte, error) {
	rows, err := p.db.Query(`SELECT payload FROM records WHERE stage = ? ORDER BY id`, stage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		out = append(out, payload)
	}
	return out, rows.Err()
}

// Close closes the database
func (p *SQLitePublisher) Close() error {
	return p.db.Close()
}
