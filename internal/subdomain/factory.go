package subdomain

import (
	"fmt"
	"time"

	"neti/internal/resolver"
)

// SourceConfig selects and tunes the sources an engine is built with
type SourceConfig struct {
	// Names lists enabled passive sources; empty enables crtsh, hackertarget and axfr
	Names []string
	// Timeout bounds each HTTP request
	Timeout time.Duration
	// RatePerSource is requests per second per HTTP source; 0 is unlimited
	RatePerSource float64
	// CrtshURL and HackerTargetURL override the public endpoints
	CrtshURL        string
	HackerTargetURL string
	// Wordlist replaces DefaultWordlist for brute-forcing
	Wordlist []string
}

// DefaultSourceNames are the passive sources enabled when none are configured
func DefaultSourceNames() []string {
	return []string{SourceCrtsh, SourceHackerTarget, SourceAXFR}
}

// BuildSources creates fresh sources for one enumeration. The brute-force
// source is added when the profile asks for it, regardless of Names.
func BuildSources(profile Profile, cfg SourceConfig, r *resolver.Resolver) ([]Source, error) {
	names := cfg.Names
	if len(names) == 0 {
		names = DefaultSourceNames()
	}

	var sources []Source
	for _, name := range names {
		switch name {
		case SourceCrtsh:
			sources = append(sources, NewCrtshSource(cfg.CrtshURL, cfg.Timeout, cfg.RatePerSource))
		case SourceHackerTarget:
			sources = append(sources, NewHackerTargetSource(cfg.HackerTargetURL, cfg.Timeout, cfg.RatePerSource))
		case SourceAXFR:
			sources = append(sources, NewAXFRSource(r))
		case SourceBruteforce:
			// controlled by the profile
		default:
			return nil, fmt.Errorf("unknown subdomain source %q", name)
		}
	}

	if profile.Bruteforce {
		sources = append(sources, NewBruteforceSource(r, cfg.Wordlist, profile.Threads))
	}
	return sources, nil
}
