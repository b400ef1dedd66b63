// Package db opens the sqlite database backing job history and the custom
// filter configuration.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: all writes already funnel through serialized
	// queues, and sqlite handles one writer at a time anyway.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := createSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func createSchema(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS history_jobs (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			results_json TEXT NOT NULL,
			watermark INTEGER NOT NULL DEFAULT 0,
			watermark_text TEXT NOT NULL DEFAULT '',
			expires_at DATETIME,
			work_dir TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS custom_filter (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			name TEXT NOT NULL,
			mode TEXT NOT NULL,
			enabled INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
