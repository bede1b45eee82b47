package adapter

import (
	"context"
	"errors"

	"neti/internal/domain"
)

// Sentinel errors used to classify adapter failures before they are folded
// into an envelope
var (
	// ErrUnsupportedDevice means the device type has no known config command
	ErrUnsupportedDevice = errors.New("unsupported device type")
	// ErrAuthFailed means the remote side rejected the credentials
	ErrAuthFailed = errors.New("authentication failed")
	// ErrTransport covers dial, handshake, host key and session failures
	ErrTransport = errors.New("transport error")
	// ErrInvalidTarget means the target is not a single safe argument
	ErrInvalidTarget = errors.New("invalid target")
)

// Adapter describes one scan backend
type Adapter interface {
	// Name returns the unique identifier for this adapter
	Name() string

	// Kind returns the target kind this adapter serves
	Kind() domain.TargetKind

	// ScanTypes lists the scan types this adapter accepts
	ScanTypes() []domain.ScanType

	// Check reports whether the adapter's external dependency is usable.
	// It never performs a scan.
	Check(ctx context.Context) error
}

// CommandRunner executes an argument vector and normalizes the outcome
type CommandRunner interface {
	Run(ctx context.Context, argv []string) domain.Output
}
