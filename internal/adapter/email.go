package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"neti/internal/domain"
	"neti/internal/resolver"
)

// EmailAdapter inspects the mail posture of an address's domain: MX, SPF and DMARC
type EmailAdapter struct {
	resolver *resolver.Resolver
	log      logrus.FieldLogger
}

// NewEmailAdapter creates the email adapter
func NewEmailAdapter(r *resolver.Resolver, log logrus.FieldLogger) *EmailAdapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &EmailAdapter{resolver: r, log: log.WithField("component", "email")}
}

// Name returns the adapter identifier
func (e *EmailAdapter) Name() string {
	return "email"
}

// Kind returns the target kind
func (e *EmailAdapter) Kind() domain.TargetKind {
	return domain.TargetKindEmail
}

// ScanTypes returns the single email operation
func (e *EmailAdapter) ScanTypes() []domain.ScanType {
	return []domain.ScanType{domain.ScanTypeEmailAnalysis}
}

// Check requires at least one nameserver
func (e *EmailAdapter) Check(ctx context.Context) error {
	if len(e.resolver.Servers()) == 0 {
		return errors.New("no nameservers configured")
	}
	return nil
}

// Analyze validates address and reports its domain's MX, SPF and DMARC
// records, one finding per line
func (e *EmailAdapter) Analyze(ctx context.Context, address string) domain.EmailAnalysisResult {
	if strings.TrimSpace(address) == "" {
		return domain.EmailAnalysisError("Target email cannot be empty")
	}
	mailDomain, err := EmailDomain(address)
	if err != nil {
		return domain.EmailAnalysisError(fmt.Sprintf("Invalid email address: %s", address))
	}

	entry := e.log.WithField("domain", mailDomain)

	mx, err := e.resolver.MX(ctx, mailDomain)
	if errors.Is(err, resolver.ErrNXDomain) {
		return domain.EmailAnalysisError(fmt.Sprintf("Domain does not exist: %s", mailDomain))
	}
	if err != nil {
		entry.WithError(err).Warn("Email: MX lookup failed")
		return domain.EmailAnalysisError(fmt.Sprintf("DNS lookup failed: %v", err))
	}

	txt, err := e.resolver.TXT(ctx, mailDomain)
	if err != nil {
		entry.WithError(err).Warn("Email: TXT lookup failed")
		return domain.EmailAnalysisError(fmt.Sprintf("DNS lookup failed: %v", err))
	}

	// a missing _dmarc name is the common case, not a failure
	dmarc, err := e.resolver.TXT(ctx, "_dmarc."+mailDomain)
	if err != nil && !errors.Is(err, resolver.ErrNXDomain) {
		entry.WithError(err).Warn("Email: DMARC lookup failed")
		return domain.EmailAnalysisError(fmt.Sprintf("DNS lookup failed: %v", err))
	}

	results := []string{fmt.Sprintf("Domain: %s", mailDomain)}
	results = append(results, mxFindings(mx)...)
	results = append(results, spfFindings(txt)...)
	results = append(results, dmarcFindings(dmarc)...)

	entry.WithField("findings", len(results)).Info("Email: analysis complete")
	return domain.EmailAnalysisCompleted(results)
}

// EmailDomain returns the lowercased domain of a bare address. Display names
// and multi-address lists are rejected.
func EmailDomain(address string) (string, error) {
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return "", err
	}
	if parsed.Name != "" || parsed.Address != strings.TrimSpace(address) {
		return "", errors.New("expected a bare address")
	}
	at := strings.LastIndex(parsed.Address, "@")
	d := strings.ToLower(parsed.Address[at+1:])
	if !strings.Contains(d, ".") || strings.HasPrefix(d, "[") {
		return "", errors.New("domain must be a DNS name")
	}
	return d, nil
}

func mxFindings(mx []resolver.MX) []string {
	if len(mx) == 0 {
		return []string{"MX: none found (domain does not accept mail)"}
	}
	sort.SliceStable(mx, func(i, j int) bool { return mx[i].Preference < mx[j].Preference })
	out := make([]string, 0, len(mx))
	for _, m := range mx {
		if m.Host == "" {
			// RFC 7505 null MX
			out = append(out, "MX: null MX (domain explicitly accepts no mail)")
			continue
		}
		out = append(out, fmt.Sprintf("MX: %d %s", m.Preference, m.Host))
	}
	return out
}

func spfFindings(txt []string) []string {
	var spf []string
	for _, record := range txt {
		if isSPF(record) {
			spf = append(spf, record)
		}
	}

	switch len(spf) {
	case 0:
		return []string{"SPF: none found"}
	case 1:
		return []string{
			fmt.Sprintf("SPF: %s", spf[0]),
			fmt.Sprintf("SPF policy: %s", spfPolicy(spf[0])),
		}
	default:
		out := []string{fmt.Sprintf("SPF: %d records published (permerror, only one is allowed)", len(spf))}
		for _, r := range spf {
			out = append(out, fmt.Sprintf("SPF: %s", r))
		}
		return out
	}
}

func isSPF(record string) bool {
	r := strings.ToLower(record)
	return r == "v=spf1" || strings.HasPrefix(r, "v=spf1 ")
}

// spfPolicy describes the record's catch-all mechanism
func spfPolicy(record string) string {
	for _, term := range strings.Fields(strings.ToLower(record)) {
		switch term {
		case "-all":
			return "fail (-all)"
		case "~all":
			return "softfail (~all)"
		case "?all":
			return "neutral (?all)"
		case "+all", "all":
			return "pass (+all, any sender allowed)"
		}
		if strings.HasPrefix(term, "redirect=") {
			return "redirect to " + strings.TrimPrefix(term, "redirect=")
		}
	}
	return "no catch-all mechanism"
}

func dmarcFindings(txt []string) []string {
	var records []string
	for _, r := range txt {
		if strings.HasPrefix(strings.ToLower(r), "v=dmarc1") {
			records = append(records, r)
		}
	}

	switch len(records) {
	case 0:
		return []string{"DMARC: none found"}
	case 1:
		out := []string{fmt.Sprintf("DMARC: %s", records[0])}
		tags := dmarcTags(records[0])
		if p, ok := tags["p"]; ok {
			out = append(out, fmt.Sprintf("DMARC policy: %s", p))
		} else {
			out = append(out, "DMARC policy: missing (record is invalid)")
		}
		if rua, ok := tags["rua"]; ok {
			out = append(out, fmt.Sprintf("DMARC reports: %s", rua))
		}
		return out
	default:
		return []string{fmt.Sprintf("DMARC: %d records published (invalid, only one is allowed)", len(records))}
	}
}

func dmarcTags(record string) map[string]string {
	tags := make(map[string]string)
	for _, part := range strings.Split(record, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		tags[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return tags
}
