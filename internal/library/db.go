package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"

	"thecrate/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS library_records (
	user_id    TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// DB persists one JSON library record per user in sqlite. Records are
// written whole; there is no per-track row. Recently touched payloads are
// kept in a small LRU so re-login of the same users skips the disk read.
type DB struct {
	db    *sql.DB
	cache *lru.Cache[string, []byte]
}

func OpenDB(path string, cacheLen int) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening library database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating library database: %w", err)
	}

	cache, err := lru.New[string, []byte](cacheLen)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating record cache: %w", err)
	}

	return &DB{db: db, cache: cache}, nil
}

// LoadRecord reads the record for a user. A user without a record gets an
// empty one, not an error.
func (d *DB) LoadRecord(ctx context.Context, userID string) (*core.LibraryRecord, error) {
	payload, ok := d.cache.Get(userID)
	if !ok {
		var stored string
		err := d.db.QueryRowContext(ctx,
			`SELECT payload FROM library_records WHERE user_id = ?`, userID).Scan(&stored)
		if err == sql.ErrNoRows {
			return &core.LibraryRecord{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading library record: %w", err)
		}
		payload = []byte(stored)
		d.cache.Add(userID, payload)
	}

	var record core.LibraryRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decoding library record: %w", err)
	}
	return &record, nil
}

// SaveRecord writes the whole record for a user, replacing any previous one.
func (d *DB) SaveRecord(ctx context.Context, userID string, record *core.LibraryRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding library record: %w", err)
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO library_records (user_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		userID, string(payload), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing library record: %w", err)
	}

	d.cache.Add(userID, payload)
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
