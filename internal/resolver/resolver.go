// Package resolver performs the DNS queries behind subdomain enumeration and
// email analysis. It talks to nameservers directly with miekg/dns so callers
// get full records (TXT strings, MX preferences, zone transfers) rather than
// the flattened answers of the net package.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout bounds a single query
const DefaultTimeout = 5 * time.Second

const resolvConf = "/etc/resolv.conf"

// fallbackServers are used when resolv.conf is missing or empty
var fallbackServers = []string{"1.1.1.1:53", "8.8.8.8:53"}

var (
	// ErrNXDomain means the name does not exist
	ErrNXDomain = errors.New("no such domain")
	// ErrNoServers means every configured nameserver failed
	ErrNoServers = errors.New("no nameserver answered")
)

// Resolver sends queries to a fixed list of nameservers, trying each in order
type Resolver struct {
	servers []string
	timeout time.Duration
}

// New creates a resolver. Empty servers means the system resolv.conf.
// Servers without a port get :53.
func New(servers []string, timeout time.Duration) *Resolver {
	if len(servers) == 0 {
		servers = systemServers()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		normalized = append(normalized, withPort(s))
	}

	return &Resolver{servers: normalized, timeout: timeout}
}

// Servers returns the nameservers in query order
func (r *Resolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

func systemServers() []string {
	cfg, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil || len(cfg.Servers) == 0 {
		return fallbackServers
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	return servers
}

func withPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.Trim(server, "[]"), "53")
}

// Lookup returns the answer section for name and qtype. A truncated UDP
// answer is retried over TCP. An empty answer is not an error.
func (r *Resolver) Lookup(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var errs []error
	for _, server := range r.servers {
		resp, err := r.exchange(ctx, msg, server)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", server, err))
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			return resp.Answer, nil
		case dns.RcodeNameError:
			return nil, fmt.Errorf("%s: %w", strings.TrimSuffix(name, "."), ErrNXDomain)
		default:
			errs = append(errs, fmt.Errorf("%s: %s", server, dns.RcodeToString[resp.Rcode]))
		}
	}

	return nil, fmt.Errorf("%w for %s %s: %w", ErrNoServers, name, dns.TypeToString[qtype], errors.Join(errs...))
}

func (r *Resolver) exchange(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
	client := &dns.Client{Net: "udp", Timeout: r.timeout}
	resp, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, err
	}
	if resp.Truncated {
		client.Net = "tcp"
		resp, _, err = client.ExchangeContext(ctx, msg, server)
	}
	return resp, err
}

// TXT returns the joined strings of each TXT record for name
func (r *Resolver) TXT(ctx context.Context, name string) ([]string, error) {
	answer, err := r.Lookup(ctx, name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rr := range answer {
		if txt, ok := rr.(*dns.TXT); ok {
			out = append(out, strings.Join(txt.Txt, ""))
		}
	}
	return out, nil
}

// MX is one mail exchanger
type MX struct {
	Host       string
	Preference uint16
}

// MX returns the mail exchangers for name in answer order
func (r *Resolver) MX(ctx context.Context, name string) ([]MX, error) {
	answer, err := r.Lookup(ctx, name, dns.TypeMX)
	if err != nil {
		return nil, err
	}
	var out []MX
	for _, rr := range answer {
		if mx, ok := rr.(*dns.MX); ok {
			out = append(out, MX{Host: strings.TrimSuffix(mx.Mx, "."), Preference: mx.Preference})
		}
	}
	return out, nil
}

// NS returns the authoritative nameserver hostnames for name
func (r *Resolver) NS(ctx context.Context, name string) ([]string, error) {
	answer, err := r.Lookup(ctx, name, dns.TypeNS)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rr := range answer {
		if ns, ok := rr.(*dns.NS); ok {
			out = append(out, strings.TrimSuffix(ns.Ns, "."))
		}
	}
	return out, nil
}

// Addresses returns the A and AAAA addresses of name
func (r *Resolver) Addresses(ctx context.Context, name string) ([]string, error) {
	var out []string
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		answer, err := r.Lookup(ctx, name, qtype)
		if err != nil {
			return out, err
		}
		for _, rr := range answer {
			switch v := rr.(type) {
			case *dns.A:
				out = append(out, v.A.String())
			case *dns.AAAA:
				out = append(out, v.AAAA.String())
			}
		}
	}
	return out, nil
}

// Exists reports whether name has at least one A or AAAA record
func (r *Resolver) Exists(ctx context.Context, name string) (bool, error) {
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		answer, err := r.Lookup(ctx, name, qtype)
		if errors.Is(err, ErrNXDomain) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		for _, rr := range answer {
			if rr.Header().Rrtype == qtype {
				return true, nil
			}
		}
	}
	return false, nil
}

// Transfer requests a full zone transfer of zone from nameserver and returns
// every owner name seen. Refusal surfaces as an error.
func (r *Resolver) Transfer(ctx context.Context, zone, nameserver string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetAxfr(dns.Fqdn(zone))

	tr := &dns.Transfer{
		DialTimeout:  r.timeout,
		ReadTimeout:  r.timeout,
		WriteTimeout: r.timeout,
	}
	ch, err := tr.In(msg, withPort(nameserver))
	if err != nil {
		return nil, fmt.Errorf("axfr %s@%s: %w", zone, nameserver, err)
	}

	var names []string
	for env := range ch {
		if env.Error != nil {
			// drain so the transfer goroutine can exit
			for range ch {
			}
			return nil, fmt.Errorf("axfr %s@%s: %w", zone, nameserver, env.Error)
		}
		if ctx.Err() != nil {
			for range ch {
			}
			return nil, ctx.Err()
		}
		for _, rr := range env.RR {
			names = append(names, strings.TrimSuffix(rr.Header().Name, "."))
		}
	}
	return names, nil
}
