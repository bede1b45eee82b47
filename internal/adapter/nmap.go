package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/sirupsen/logrus"

	"neti/internal/domain"
)

// DefaultNmapTimeout bounds a whole nmap run
const DefaultNmapTimeout = 10 * time.Minute

// noFindingsNote annotates the raw summary returned when nmap reports no hosts
const noFindingsNote = "No open ports or specific results found. Raw Nmap output provided."

// scanProfiles maps each port scan type to its nmap arguments. Read-only.
var scanProfiles = map[domain.ScanType]string{
	domain.ScanTypePingScan:    "-sn",
	domain.ScanTypeQuickScan:   "-T4 -F",
	domain.ScanTypeIntenseScan: "-T4 -A -v",
	domain.ScanTypeUDPScan:     "-sU",
	domain.ScanTypeVulnScan:    "--script vuln",
}

// portScanTypes fixes the listing order of scanProfiles
var portScanTypes = []domain.ScanType{
	domain.ScanTypePingScan,
	domain.ScanTypeQuickScan,
	domain.ScanTypeIntenseScan,
	domain.ScanTypeUDPScan,
	domain.ScanTypeVulnScan,
}

// ScanProfile returns the nmap arguments for a scan type
func ScanProfile(scanType domain.ScanType) (string, bool) {
	args, ok := scanProfiles[scanType]
	return args, ok
}

// PortScanEngine runs one port scan and returns the parsed nmap report
type PortScanEngine interface {
	Scan(ctx context.Context, target string, args []string) (*nmap.Run, []string, error)
}

// EngineFactory builds a fresh engine for every scan
type EngineFactory func() PortScanEngine

// NmapEngine is the PortScanEngine backed by the nmap binary
type NmapEngine struct {
	BinaryPath string
}

// Scan runs nmap against target with args passed through verbatim
func (e *NmapEngine) Scan(ctx context.Context, target string, args []string) (*nmap.Run, []string, error) {
	opts := []nmap.Option{
		nmap.WithTargets(target),
		nmap.WithCustomArguments(args...),
	}
	if e.BinaryPath != "" {
		opts = append(opts, nmap.WithBinaryPath(e.BinaryPath))
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	var warn []string
	if warnings != nil {
		warn = *warnings
	}
	return result, warn, err
}

// NmapAdapter performs port and vulnerability scans through a PortScanEngine
type NmapAdapter struct {
	newEngine  EngineFactory
	timeout    time.Duration
	binaryPath string
	log        logrus.FieldLogger
}

// NewNmapAdapter creates a new nmap-based port scan adapter
func NewNmapAdapter(opts ...NmapOption) *NmapAdapter {
	adapter := &NmapAdapter{
		timeout: DefaultNmapTimeout,
		log:     logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(adapter)
	}

	if adapter.newEngine == nil {
		binaryPath := adapter.binaryPath
		adapter.newEngine = func() PortScanEngine {
			return &NmapEngine{BinaryPath: binaryPath}
		}
	}
	adapter.log = adapter.log.WithField("component", "nmap")

	return adapter
}

// Name returns the adapter identifier
func (n *NmapAdapter) Name() string {
	return "nmap"
}

// Kind returns the target kind
func (n *NmapAdapter) Kind() domain.TargetKind {
	return domain.TargetKindNetwork
}

// ScanTypes returns the argument profiles in display order
func (n *NmapAdapter) ScanTypes() []domain.ScanType {
	return append([]domain.ScanType(nil), portScanTypes...)
}

// Check runs a list scan of localhost, which sends no packets
func (n *NmapAdapter) Check(ctx context.Context) error {
	opts := []nmap.Option{
		nmap.WithTargets("localhost"),
		nmap.WithListScan(),
	}
	if n.binaryPath != "" {
		opts = append(opts, nmap.WithBinaryPath(n.binaryPath))
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return fmt.Errorf("nmap unavailable: %w", err)
	}
	if _, _, err := scanner.Run(); err != nil {
		return fmt.Errorf("nmap list scan: %w", err)
	}
	return nil
}

// PortScan scans target with the profile named by scanType and renders the report
func (n *NmapAdapter) PortScan(ctx context.Context, target string, scanType domain.ScanType) domain.Output {
	profile, ok := ScanProfile(scanType)
	if !ok {
		return domain.Failure(fmt.Sprintf("Invalid scan type: %s", scanType))
	}
	if out, ok := checkTarget(target); !ok {
		return out
	}

	entry := n.log.WithFields(logrus.Fields{
		"target":    target,
		"scan_type": scanType,
		"arguments": profile,
	})
	entry.Info("Nmap: starting scan")

	scanCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	start := time.Now()
	result, warnings, err := n.newEngine().Scan(scanCtx, target, splitArguments(profile))
	if len(warnings) > 0 {
		entry.WithField("warnings", warnings).Debug("Nmap: scan warnings")
	}
	if err != nil {
		entry.WithError(err).Warn("Nmap: scan failed")
		return n.failure(ctx, scanCtx, err)
	}
	if result == nil {
		return domain.Failure("An unexpected error occurred: nmap returned no result")
	}

	entry.WithFields(logrus.Fields{
		"hosts":   len(result.Hosts),
		"elapsed": time.Since(start),
	}).Info("Nmap: scan complete")

	if len(result.Hosts) == 0 {
		summary, err := CSVSummary(result)
		if err != nil {
			return domain.Failure(fmt.Sprintf("An unexpected error occurred: %v", err))
		}
		return domain.SuccessWithNote(summary, noFindingsNote)
	}

	return domain.Success(FormatReport(result))
}

// failure maps an engine error to an envelope. nmap reports any finished
// context as ErrScanTimeout, so the caller's context is consulted first.
func (n *NmapAdapter) failure(ctx, scanCtx context.Context, err error) domain.Output {
	switch {
	case ctx.Err() != nil:
		return domain.Failure(fmt.Sprintf("Nmap error: scan canceled before completion (%v)", ctx.Err()))
	case errors.Is(err, nmap.ErrNmapNotInstalled):
		return domain.Failure(fmt.Sprintf("Nmap error: %v. Is Nmap installed on the system?", err))
	case errors.Is(err, nmap.ErrScanTimeout), errors.Is(scanCtx.Err(), context.DeadlineExceeded):
		return domain.Failure(fmt.Sprintf("Nmap error: scan timed out after %s", n.timeout))
	default:
		return domain.Failure(fmt.Sprintf("An unexpected error occurred: %v", err))
	}
}
