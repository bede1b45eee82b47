package subdomain

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Source names accepted in configuration
const (
	SourceCrtsh        = "crtsh"
	SourceHackerTarget = "hackertarget"
	SourceAXFR         = "axfr"
	SourceBruteforce   = "bruteforce"
)

// maxBodyBytes caps what a passive source may return
const maxBodyBytes = 32 << 20

// httpSource holds what every HTTP-backed source shares
type httpSource struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

func newHTTPSource(baseURL string, timeout time.Duration, perSecond float64) httpSource {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return httpSource{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// get waits for the limiter then fetches url, failing on non-200
func (s httpSource) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "neti")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// CrtshSource queries crt.sh certificate transparency logs
type CrtshSource struct {
	httpSource
}

// NewCrtshSource creates a crt.sh source. Empty baseURL uses https://crt.sh.
func NewCrtshSource(baseURL string, timeout time.Duration, perSecond float64) *CrtshSource {
	if baseURL == "" {
		baseURL = "https://crt.sh"
	}
	return &CrtshSource{httpSource: newHTTPSource(baseURL, timeout, perSecond)}
}

func (s *CrtshSource) Name() string { return SourceCrtsh }

func (s *CrtshSource) Subdomains(ctx context.Context, domain string) ([]string, error) {
	u := fmt.Sprintf("%s/?q=%s&output=json", s.baseURL, url.QueryEscape("%."+domain))

	body, err := s.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var entries []struct {
		NameValue string `json:"name_value"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode crt.sh response: %w", err)
	}

	var names []string
	for _, entry := range entries {
		// multi-SAN certificates list one name per line
		names = append(names, strings.Split(entry.NameValue, "\n")...)
	}
	return names, nil
}

// HackerTargetSource queries the hackertarget.com host search API
type HackerTargetSource struct {
	httpSource
}

// NewHackerTargetSource creates a hackertarget source. Empty baseURL uses the public API.
func NewHackerTargetSource(baseURL string, timeout time.Duration, perSecond float64) *HackerTargetSource {
	if baseURL == "" {
		baseURL = "https://api.hackertarget.com"
	}
	return &HackerTargetSource{httpSource: newHTTPSource(baseURL, timeout, perSecond)}
}

func (s *HackerTargetSource) Name() string { return SourceHackerTarget }

// Subdomains parses "host,ip" lines. The API reports quota and lookup
// problems as a plain-text line starting with "error".
func (s *HackerTargetSource) Subdomains(ctx context.Context, domain string) ([]string, error) {
	u := fmt.Sprintf("%s/hostsearch/?q=%s", s.baseURL, url.QueryEscape(domain))

	body, err := s.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var names []string
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "error") || strings.HasPrefix(line, "API count exceeded") {
			return nil, fmt.Errorf("hackertarget: %s", line)
		}
		host, _, _ := strings.Cut(line, ",")
		names = append(names, host)
	}
	return names, scanner.Err()
}
