package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"neti/internal/repository"
)

// timeLayout is how timestamps are stored; lexical order matches time order
const timeLayout = time.RFC3339Nano

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanHostKey(row rowScanner) (*repository.HostKey, error) {
	var (
		key             repository.HostKey
		firstSeen, last string
	)
	if err := row.Scan(&key.Host, &key.KeyType, &key.Key, &key.Fingerprint, &firstSeen, &last); err != nil {
		return nil, err
	}

	var err error
	if key.FirstSeen, err = parseTime(firstSeen); err != nil {
		return nil, err
	}
	if key.LastSeen, err = parseTime(last); err != nil {
		return nil, err
	}
	return &key, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// requireAffected maps "no rows changed" to repository.ErrNotFound
func requireAffected(res sql.Result, host string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("host key for %s: %w", host, repository.ErrNotFound)
	}
	return nil
}
