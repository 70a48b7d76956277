package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/autotag/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tagged_files (
	path      TEXT PRIMARY KEY,
	tagged_at INTEGER NOT NULL
);
`

// SQLite stores the state in a SQLite database: scalar settings as JSON values
// keyed by their field name, and the tagging record as one row per document.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("state: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

func settingFields(st *models.State) map[string]any {
	return map[string]any{
		"selectedModel":   &st.SelectedModel,
		"defaultTags":     &st.DefaultTags,
		"autoAddTags":     &st.AutoAddTags,
		"excludePatterns": &st.ExcludePatterns,
	}
}

// Load reads persisted settings over into. The tagging record is replaced
// wholesale once any state has been saved.
func (s *SQLite) Load(ctx context.Context, into *models.State) error {
	rows, err := s.conn.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	fields := settingFields(into)
	saved := false
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		saved = true
		target, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(value), target); err != nil {
			return fmt.Errorf("decode setting %s: %w", key, err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if !saved {
		return nil
	}

	record, err := s.taggedFiles(ctx)
	if err != nil {
		return err
	}
	into.TaggedFiles = record
	return nil
}

func (s *SQLite) taggedFiles(ctx context.Context) (models.TaggingRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT path, tagged_at FROM tagged_files`)
	if err != nil {
		return nil, fmt.Errorf("query tagged files: %w", err)
	}
	defer rows.Close()
	out := models.TaggingRecord{}
	for rows.Next() {
		var p string
		var at int64
		if err := rows.Scan(&p, &at); err != nil {
			return nil, err
		}
		out[p] = at
	}
	return out, rows.Err()
}

// Save overwrites all settings and the tagging record in one transaction.
func (s *SQLite) Save(ctx context.Context, st *models.State) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for key, ptr := range settingFields(st) {
		value, err := json.Marshal(ptr)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, string(value)); err != nil {
			return fmt.Errorf("upsert setting %s: %w", key, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tagged_files`); err != nil {
		return fmt.Errorf("clear tagged files: %w", err)
	}
	if len(st.TaggedFiles) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO tagged_files (path, tagged_at) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare tagged file insert: %w", err)
		}
		defer stmt.Close()
		for p, at := range st.TaggedFiles {
			if _, err := stmt.ExecContext(ctx, p, at); err != nil {
				return fmt.Errorf("insert tagged file: %w", err)
			}
		}
	}
	return tx.Commit()
}
