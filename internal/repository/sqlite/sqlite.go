package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"neti/internal/repository"
)

// Repository implements repository.HostKeyRepository using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.HostKeyRepository = (*Repository)(nil)

// New opens (creating if needed) the SQLite database at dbPath.
// ":memory:" gives a private in-memory database.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers and keeps an in-memory database alive
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func dsn(dbPath string) string {
	if dbPath == ":memory:" {
		return "file::memory:?_pragma=busy_timeout(5000)"
	}
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return "file:" + dbPath + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS host_keys (
		host TEXT PRIMARY KEY,
		key_type TEXT NOT NULL,
		key BLOB NOT NULL,
		fingerprint TEXT NOT NULL,
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL
	);
	`

	_, err := r.db.Exec(schema)
	return err
}

// GetHostKey returns the pinned key for host
func (r *Repository) GetHostKey(ctx context.Context, host string) (*repository.HostKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT host, key_type, key, fingerprint, first_seen, last_seen
		FROM host_keys WHERE host = ?
	`, host)

	key, err := scanHostKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get host key: %w", err)
	}
	return key, nil
}

// PinHostKey stores the first key seen for a host
func (r *Repository) PinHostKey(ctx context.Context, key *repository.HostKey) error {
	now := time.Now().UTC()
	first, last := key.FirstSeen, key.LastSeen
	if first.IsZero() {
		first = now
	}
	if last.IsZero() {
		last = first
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO host_keys (host, key_type, key, fingerprint, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
	`, key.Host, key.KeyType, key.Key, key.Fingerprint, formatTime(first), formatTime(last))
	if err != nil {
		return fmt.Errorf("failed to pin host key for %s: %w", key.Host, err)
	}
	return nil
}

// TouchHostKey updates last_seen for a pinned key
func (r *Repository) TouchHostKey(ctx context.Context, host string, seen time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE host_keys SET last_seen = ? WHERE host = ?`, formatTime(seen), host)
	if err != nil {
		return fmt.Errorf("failed to touch host key: %w", err)
	}
	return requireAffected(res, host)
}

// DeleteHostKey removes a pinned key
func (r *Repository) DeleteHostKey(ctx context.Context, host string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM host_keys WHERE host = ?`, host)
	if err != nil {
		return fmt.Errorf("failed to delete host key: %w", err)
	}
	return requireAffected(res, host)
}

// ListHostKeys returns all pinned keys ordered by host
func (r *Repository) ListHostKeys(ctx context.Context) ([]repository.HostKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT host, key_type, key, fingerprint, first_seen, last_seen
		FROM host_keys ORDER BY host
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query host keys: %w", err)
	}
	defer rows.Close()

	var keys []repository.HostKey
	for rows.Next() {
		key, err := scanHostKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan host key: %w", err)
		}
		keys = append(keys, *key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating host keys: %w", err)
	}
	return keys, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
