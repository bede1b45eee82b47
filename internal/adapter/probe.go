package adapter

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"neti/internal/domain"
)

// maxTargetLength matches the longest DNS name plus room for an IPv6 zone
const maxTargetLength = 255

// shellMetacharacters are rejected outright; targets never need them
const shellMetacharacters = "`$&|;<>(){}[]!*?~'\"\\#^"

// ProbeBinaries names the executables behind each probe
type ProbeBinaries struct {
	Ping       string
	Traceroute string
	Nslookup   string
}

// DefaultProbeBinaries resolves the probes through $PATH
func DefaultProbeBinaries() ProbeBinaries {
	return ProbeBinaries{
		Ping:       "ping",
		Traceroute: "traceroute",
		Nslookup:   "nslookup",
	}
}

// ProbeAdapter runs the single-shot command-line probes
type ProbeAdapter struct {
	runner   CommandRunner
	binaries ProbeBinaries
	log      logrus.FieldLogger
}

// NewProbeAdapter creates a probe adapter. Empty binary names fall back to defaults.
func NewProbeAdapter(runner CommandRunner, binaries ProbeBinaries, log logrus.FieldLogger) *ProbeAdapter {
	defaults := DefaultProbeBinaries()
	if binaries.Ping == "" {
		binaries.Ping = defaults.Ping
	}
	if binaries.Traceroute == "" {
		binaries.Traceroute = defaults.Traceroute
	}
	if binaries.Nslookup == "" {
		binaries.Nslookup = defaults.Nslookup
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ProbeAdapter{
		runner:   runner,
		binaries: binaries,
		log:      log.WithField("component", "probe"),
	}
}

// Name returns the adapter identifier
func (p *ProbeAdapter) Name() string {
	return "probe"
}

// Kind returns the target kind
func (p *ProbeAdapter) Kind() domain.TargetKind {
	return domain.TargetKindNetwork
}

// ScanTypes returns the probes this adapter runs
func (p *ProbeAdapter) ScanTypes() []domain.ScanType {
	return []domain.ScanType{domain.ScanTypePing, domain.ScanTypeTraceroute, domain.ScanTypeNslookup}
}

// Check verifies every probe binary can be found
func (p *ProbeAdapter) Check(ctx context.Context) error {
	var missing []string
	for _, bin := range []string{p.binaries.Ping, p.binaries.Traceroute, p.binaries.Nslookup} {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("probe binaries not found: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Ping sends four echo requests to target
func (p *ProbeAdapter) Ping(ctx context.Context, target string) domain.Output {
	return p.probe(ctx, target, func(t string) []string {
		return []string{p.binaries.Ping, "-c", "4", t}
	})
}

// Traceroute traces the route to target
func (p *ProbeAdapter) Traceroute(ctx context.Context, target string) domain.Output {
	return p.probe(ctx, target, func(t string) []string {
		return []string{p.binaries.Traceroute, t}
	})
}

// Nslookup resolves target through the system resolver
func (p *ProbeAdapter) Nslookup(ctx context.Context, target string) domain.Output {
	return p.probe(ctx, target, func(t string) []string {
		return []string{p.binaries.Nslookup, t}
	})
}

// Probe runs the probe named by scanType
func (p *ProbeAdapter) Probe(ctx context.Context, scanType domain.ScanType, target string) domain.Output {
	switch scanType {
	case domain.ScanTypePing:
		return p.Ping(ctx, target)
	case domain.ScanTypeTraceroute:
		return p.Traceroute(ctx, target)
	case domain.ScanTypeNslookup:
		return p.Nslookup(ctx, target)
	default:
		return domain.Failure(fmt.Sprintf("Invalid scan type: %s", scanType))
	}
}

func (p *ProbeAdapter) probe(ctx context.Context, target string, argv func(string) []string) domain.Output {
	if out, ok := checkTarget(target); !ok {
		return out
	}

	args := argv(target)
	p.log.WithFields(logrus.Fields{
		"command": args[0],
		"target":  target,
	}).Info("Probe: running")

	return p.runner.Run(ctx, args)
}

// TargetError explains why a target was rejected
type TargetError struct {
	Reason string
}

func (e *TargetError) Error() string { return "invalid target: " + e.Reason }

func (e *TargetError) Unwrap() error { return ErrInvalidTarget }

// checkTarget converts a target validation error into the failure envelope
func checkTarget(target string) (domain.Output, bool) {
	if strings.TrimSpace(target) == "" {
		return domain.Failure("Target cannot be empty"), false
	}
	if err := ValidateTarget(target); err != nil {
		var te *TargetError
		if errors.As(err, &te) {
			return domain.Failure("Invalid target: " + te.Reason), false
		}
		return domain.Failure("Invalid target: " + err.Error()), false
	}
	return domain.Output{}, true
}

// ValidateTarget checks that target is safe to pass as a single argv token
func ValidateTarget(target string) error {
	if strings.TrimSpace(target) == "" {
		return &TargetError{Reason: "target is empty"}
	}
	if len(target) > maxTargetLength {
		return &TargetError{Reason: fmt.Sprintf("longer than %d characters", maxTargetLength)}
	}
	if strings.HasPrefix(target, "-") {
		return &TargetError{Reason: "must not start with '-'"}
	}
	for _, r := range target {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return &TargetError{Reason: "contains whitespace or control characters"}
		}
		if strings.ContainsRune(shellMetacharacters, r) {
			return &TargetError{Reason: fmt.Sprintf("contains shell metacharacter %q", r)}
		}
	}
	return nil
}
