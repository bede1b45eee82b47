package subdomain

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"neti/internal/resolver"
)

// DefaultWordlist is the built-in brute-force list
var DefaultWordlist = []string{
	"www", "mail", "smtp", "imap", "pop", "webmail", "mx", "ns1", "ns2",
	"vpn", "remote", "gw", "gateway", "fw", "router", "api", "dev", "test",
	"staging", "admin", "portal", "intranet", "git", "ci", "jenkins", "monitor",
	"grafana", "db", "backup", "files", "ftp", "cdn", "static", "app", "auth",
	"sso", "id", "login", "status", "docs",
}

// AXFRSource asks each authoritative nameserver for a full zone transfer
type AXFRSource struct {
	resolver *resolver.Resolver
	port     string
}

// NewAXFRSource creates a zone transfer source
func NewAXFRSource(r *resolver.Resolver) *AXFRSource {
	return &AXFRSource{resolver: r, port: "53"}
}

func (s *AXFRSource) Name() string { return SourceAXFR }

// Subdomains returns the names from the first nameserver that allows the transfer
func (s *AXFRSource) Subdomains(ctx context.Context, domain string) ([]string, error) {
	nameservers, err := s.resolver.NS(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("look up nameservers: %w", err)
	}
	if len(nameservers) == 0 {
		return nil, fmt.Errorf("no nameservers for %s", domain)
	}

	var errs []error
	for _, ns := range nameservers {
		for _, addr := range s.nameserverAddrs(ctx, ns) {
			names, err := s.resolver.Transfer(ctx, domain, addr)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			return names, nil
		}
	}
	return nil, fmt.Errorf("zone transfer refused: %w", errors.Join(errs...))
}

// nameserverAddrs resolves ns through the configured resolver so the
// transfer does not depend on the system resolver
func (s *AXFRSource) nameserverAddrs(ctx context.Context, ns string) []string {
	addrs, _ := s.resolver.Addresses(ctx, ns)
	if len(addrs) == 0 {
		addrs = []string{ns}
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, net.JoinHostPort(a, s.port))
	}
	return out
}

// BruteforceSource resolves wordlist entries under the domain
type BruteforceSource struct {
	resolver *resolver.Resolver
	words    []string
	threads  int
}

// NewBruteforceSource creates a wordlist source. Empty words uses DefaultWordlist.
func NewBruteforceSource(r *resolver.Resolver, words []string, threads int) *BruteforceSource {
	if len(words) == 0 {
		words = DefaultWordlist
	}
	if threads <= 0 {
		threads = DefaultThreads
	}
	return &BruteforceSource{resolver: r, words: words, threads: threads}
}

func (s *BruteforceSource) Name() string { return SourceBruteforce }

// Subdomains returns the candidates that resolve. Lookup errors on single
// candidates are skipped; the source fails only if every lookup errors.
func (s *BruteforceSource) Subdomains(ctx context.Context, domain string) ([]string, error) {
	hits := make([]bool, len(s.words))
	failures := make([]error, len(s.words))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.threads)

	for i, word := range s.words {
		g.Go(func() error {
			ok, err := s.resolver.Exists(gctx, word+"."+domain)
			if err != nil {
				failures[i] = err
				return nil
			}
			hits[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var names []string
	failed := 0
	for i, word := range s.words {
		if failures[i] != nil {
			failed++
			continue
		}
		if hits[i] {
			names = append(names, word+"."+domain)
		}
	}
	if failed == len(s.words) {
		return nil, fmt.Errorf("all lookups failed: %w", failures[0])
	}
	return names, nil
}
