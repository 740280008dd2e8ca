package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB is the video catalog backed by PostgreSQL.
type DB struct {
	*sql.DB
}

// New opens the database, checks the connection and creates the schema if
// it is missing.
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{DB: conn}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS videos (
		id                SERIAL PRIMARY KEY,
		title             TEXT NOT NULL,
		category          TEXT NOT NULL DEFAULT '',
		format            TEXT NOT NULL DEFAULT '',
		style             TEXT NOT NULL DEFAULT '',
		voice             TEXT NOT NULL DEFAULT '',
		script            TEXT NOT NULL DEFAULT '',
		keywords          TEXT NOT NULL DEFAULT '',
		negative_keywords TEXT NOT NULL DEFAULT '',
		path              TEXT NOT NULL,
		thumbnail_path    TEXT,
		duration          DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		status            TEXT NOT NULL DEFAULT 'completed'
	);
	CREATE INDEX IF NOT EXISTS videos_created_at_idx ON videos (created_at DESC);
`

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
