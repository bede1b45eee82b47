package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for the requested key
var ErrNotFound = errors.New("not found")

// HostKey is an SSH host key pinned for one host:port
type HostKey struct {
	Host        string    `json:"host"`
	KeyType     string    `json:"key_type"`
	Key         []byte    `json:"-"`
	Fingerprint string    `json:"fingerprint"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// HostKeyRepository stores pinned SSH host keys
type HostKeyRepository interface {
	// GetHostKey returns the pinned key for host, or ErrNotFound
	GetHostKey(ctx context.Context, host string) (*HostKey, error)

	// PinHostKey stores a key for a host that has none yet.
	// Pinning a host that already has a key fails.
	PinHostKey(ctx context.Context, key *HostKey) error

	// TouchHostKey records that the pinned key was seen again
	TouchHostKey(ctx context.Context, host string, seen time.Time) error

	// DeleteHostKey forgets a pinned key so the next connection re-pins
	DeleteHostKey(ctx context.Context, host string) error

	// ListHostKeys returns every pinned key ordered by host
	ListHostKeys(ctx context.Context) ([]HostKey, error)

	// Close releases resources
	Close() error
}
