package adapter

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"neti/internal/domain"
	"neti/internal/subdomain"
)

const unsupportedDomainScan = "Unsupported scan type for domain."

// SourceFactory builds the sources for one enumeration
type SourceFactory func(profile subdomain.Profile) ([]subdomain.Source, error)

// SubdomainAdapter enumerates subdomains with a fresh engine per call
type SubdomainAdapter struct {
	profile    subdomain.Profile
	newSources SourceFactory
	log        logrus.FieldLogger
}

// NewSubdomainAdapter creates the adapter. A zero profile uses subdomain.DefaultProfile.
func NewSubdomainAdapter(profile subdomain.Profile, newSources SourceFactory, log logrus.FieldLogger) *SubdomainAdapter {
	if profile == (subdomain.Profile{}) {
		profile = subdomain.DefaultProfile()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SubdomainAdapter{
		profile:    profile,
		newSources: newSources,
		log:        log,
	}
}

// Name returns the adapter identifier
func (s *SubdomainAdapter) Name() string {
	return "subdomain"
}

// Kind returns the target kind
func (s *SubdomainAdapter) Kind() domain.TargetKind {
	return domain.TargetKindDomain
}

// ScanTypes returns the only scan type a domain accepts
func (s *SubdomainAdapter) ScanTypes() []domain.ScanType {
	return []domain.ScanType{domain.ScanTypeSubdomainEnum}
}

// Check verifies the sources can be built
func (s *SubdomainAdapter) Check(ctx context.Context) error {
	sources, err := s.newSources(s.profile)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return subdomain.ErrNoSources
	}
	return nil
}

// Enumerate runs subdomain discovery for domainName. Only subdomain_enum is
// accepted; engine failures are reported in the result, never returned.
func (s *SubdomainAdapter) Enumerate(ctx context.Context, domainName string, scanType domain.ScanType) domain.DomainScanResult {
	if scanType != domain.ScanTypeSubdomainEnum {
		return domain.DomainScanError(unsupportedDomainScan)
	}

	sources, err := s.newSources(s.profile)
	if err != nil {
		return domain.DomainScanError(err.Error())
	}
	engine := subdomain.NewEngine(s.profile, sources, s.log)

	results, err := engine.Enumerate(ctx, domainName)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return domain.DomainScanError("subdomain enumeration cancelled: " + err.Error())
		}
		return domain.DomainScanError(err.Error())
	}

	s.log.WithFields(logrus.Fields{
		"component": "subdomain",
		"domain":    domainName,
		"found":     len(results),
	}).Info("Subdomain: enumeration complete")

	return domain.DomainScanCompleted(results)
}
