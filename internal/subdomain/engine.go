// Package subdomain discovers subdomains of a registrable domain by querying
// passive sources (certificate transparency, search APIs, zone transfers) and
// optionally brute-forcing a small wordlist.
//
// An Engine is built per enumeration from a Profile and discarded afterwards.
// Sources run concurrently, bounded by Profile.Threads; each source is rate
// limited on its own.
package subdomain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultThreads is the concurrency used when a profile leaves it unset
const DefaultThreads = 40

var (
	// ErrNoSources means the engine was built without any source
	ErrNoSources = errors.New("no subdomain sources configured")
	// ErrInvalidDomain means the input is not a domain name
	ErrInvalidDomain = errors.New("invalid domain")
)

// Source is one way of discovering names under a domain
type Source interface {
	// Name identifies the source in logs and errors
	Name() string
	// Subdomains returns candidate names. They need not be filtered or unique.
	Subdomains(ctx context.Context, domain string) ([]string, error)
}

// Profile tunes a single enumeration
type Profile struct {
	// Threads bounds concurrent source queries and brute-force lookups
	Threads int
	// Bruteforce enables the wordlist source
	Bruteforce bool
	// Silent lowers per-source progress logging to debug
	Silent bool
}

// DefaultProfile is the profile used for subdomain_enum scans
func DefaultProfile() Profile {
	return Profile{Threads: DefaultThreads, Bruteforce: false, Silent: true}
}

// Engine runs one enumeration across its sources
type Engine struct {
	profile Profile
	sources []Source
	log     logrus.FieldLogger
}

// NewEngine creates an engine over sources
func NewEngine(profile Profile, sources []Source, log logrus.FieldLogger) *Engine {
	if profile.Threads <= 0 {
		profile.Threads = DefaultThreads
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		profile: profile,
		sources: sources,
		log:     log.WithField("component", "subdomain"),
	}
}

// Profile returns the engine's profile after defaults
func (e *Engine) Profile() Profile {
	return e.profile
}

// Enumerate queries every source and returns the unique names under domain,
// sorted. A source failure is tolerated as long as one source succeeds; if
// all fail the joined errors are returned. Zero names is a valid result.
func (e *Engine) Enumerate(ctx context.Context, domain string) ([]string, error) {
	domain, err := NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	if len(e.sources) == 0 {
		return nil, ErrNoSources
	}

	var (
		mu        sync.Mutex
		found     = make(map[string]struct{})
		errs      []error
		succeeded int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.profile.Threads)

	for _, src := range e.sources {
		g.Go(func() error {
			names, err := src.Subdomains(gctx, domain)

			mu.Lock()
			defer mu.Unlock()

			entry := e.log.WithFields(logrus.Fields{"source": src.Name(), "domain": domain})
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
				entry.WithError(err).Debug("Subdomain: source failed")
				return nil
			}
			succeeded++

			kept := 0
			for _, name := range names {
				if n, ok := underDomain(name, domain); ok {
					if _, dup := found[n]; !dup {
						found[n] = struct{}{}
						kept++
					}
				}
			}
			e.progress(entry.WithField("new", kept), "Subdomain: source finished")
			return nil
		})
	}

	// workers never return errors; failures are collected above
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if succeeded == 0 {
		return nil, errors.Join(errs...)
	}

	results := make([]string, 0, len(found))
	for name := range found {
		results = append(results, name)
	}
	sort.Strings(results)
	return results, nil
}

func (e *Engine) progress(entry *logrus.Entry, msg string) {
	if e.profile.Silent {
		entry.Debug(msg)
		return
	}
	entry.Info(msg)
}

// NormalizeDomain lowercases domain, strips a trailing dot and checks it is a
// multi-label DNS name
func NormalizeDomain(domain string) (string, error) {
	d := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if d == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDomain)
	}
	if _, ok := dns.IsDomainName(d); !ok || !strings.Contains(d, ".") || strings.ContainsAny(d, " /:@*") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	return d, nil
}

// underDomain cleans a candidate name and reports whether it lies strictly
// under domain
func underDomain(name, domain string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "*.")
	n = strings.TrimSuffix(n, ".")
	if n == "" || strings.ContainsAny(n, " *@") {
		return "", false
	}
	if strings.HasSuffix(n, "."+domain) {
		return n, true
	}
	return "", false
}
