package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neti/internal/adapter"
	"neti/internal/domain"
	"neti/internal/service"
)

type stubScanner struct {
	result   domain.Envelope
	analysis domain.AnalysisResult
	note     string
	panics   bool

	requests []domain.ScanRequest
	apiKeys  []string
}

func (s *stubScanner) Scan(ctx context.Context, req domain.ScanRequest) service.ScanOutcome {
	if s.panics {
		panic("boom")
	}
	s.requests = append(s.requests, req)
	return service.ScanOutcome{ID: "scan-1", Result: s.result, Elapsed: 1500 * time.Millisecond}
}

func (s *stubScanner) Analyze(ctx context.Context, apiKey, results string) domain.AnalysisResult {
	s.apiKeys = append(s.apiKeys, apiKey)
	return s.analysis
}

func (s *stubScanner) DeviceAnalysis(ctx context.Context, apiKey string, res domain.DeviceConfigResult) string {
	s.apiKeys = append(s.apiKeys, apiKey)
	return s.note
}

type stubLister []adapter.AdapterInfo

func (l stubLister) ListAdapters() []adapter.AdapterInfo { return l }

func newTestRouter(s *stubScanner, cfg RouterConfig) *gin.Engine {
	cfg.Mode = gin.TestMode
	return NewRouter(NewScanHandler(s, stubLister{{Name: "probe", Kind: domain.TargetKindNetwork}}), cfg)
}

func post(t *testing.T, r http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	return w, decoded
}

func TestProbeRoutes(t *testing.T) {
	s := &stubScanner{result: domain.Success("PING 10.0.0.1\n")}
	r := newTestRouter(s, RouterConfig{})

	routes := map[string]domain.ScanType{
		"/run_ping":       domain.ScanTypePing,
		"/run_traceroute": domain.ScanTypeTraceroute,
		"/run_nslookup":   domain.ScanTypeNslookup,
	}
	for path, scanType := range routes {
		t.Run(path, func(t *testing.T) {
			w, body := post(t, r, path, `{"target":"10.0.0.1"}`)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "PING 10.0.0.1\n", body["result"])
			assert.Equal(t, "scan-1", w.Header().Get("X-Scan-ID"))

			last := s.requests[len(s.requests)-1]
			assert.Equal(t, domain.TargetKindNetwork, last.Kind)
			assert.Equal(t, scanType, last.ScanType)
		})
	}
}

func TestProbeRoutes_Validation(t *testing.T) {
	s := &stubScanner{result: domain.Success("")}
	r := newTestRouter(s, RouterConfig{})

	w, body := post(t, r, "/run_ping", `{"target":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Target cannot be empty", body["error"])

	w, body = post(t, r, "/run_ping", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", body["error"])
	assert.Empty(t, s.requests)
}

func TestProbeRoutes_FailureIsOK(t *testing.T) {
	s := &stubScanner{result: domain.Failure("ping: unknown host nope")}
	r := newTestRouter(s, RouterConfig{})

	w, body := post(t, r, "/run_ping", `{"target":"nope"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ping: unknown host nope", body["error"])
	assert.NotContains(t, body, "result")
}

func TestNmapRoute(t *testing.T) {
	s := &stubScanner{result: domain.SuccessWithNote("Host: 10.0.0.1\n", "scan finished with warnings")}
	r := newTestRouter(s, RouterConfig{})

	w, body := post(t, r, "/run_nmap", `{"target":"10.0.0.1","scan_type":"quick_scan"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Host: 10.0.0.1\n", body["result"])
	assert.Equal(t, "scan finished with warnings", body["note"])
	require.Len(t, s.requests, 1)
	assert.Equal(t, domain.ScanTypeQuickScan, s.requests[0].ScanType)

	w, body = post(t, r, "/run_nmap", `{"target":"10.0.0.1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Target and scan_type are required.", body["error"])

	w, body = post(t, r, "/run_nmap", `{"target":"10.0.0.1","scan_type":"ping"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Invalid scan type: ping", body["error"])
	assert.Len(t, s.requests, 1)
}

func TestDomainScanRoute(t *testing.T) {
	s := &stubScanner{result: domain.DomainScanCompleted([]string{"a.example.com", "b.example.com"})}
	r := newTestRouter(s, RouterConfig{})

	w, body := post(t, r, "/run_domain_scan", `{"target_domain":"example.com","scan_type":"subdomain_enum"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	result := body["result"].(map[string]interface{})
	assert.Equal(t, "completed", result["status"])
	assert.Equal(t, []interface{}{"a.example.com", "b.example.com"}, result["results"])

	w, body = post(t, r, "/run_domain_scan", `{"target_domain":"","scan_type":"subdomain_enum"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Target domain cannot be empty", body["error"])
}

func TestDeviceRoute(t *testing.T) {
	s := &stubScanner{result: domain.DeviceConfigCompleted("/ip address\nadd address=10.0.0.1/24\n"), note: "No issues found."}
	r := newTestRouter(s, RouterConfig{})

	w, body := post(t, r, "/network_device_target",
		`{"device_type":"mikrotik","host":"10.0.0.1","username":"admin","password":"secret","api_key":"k"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "/ip address\nadd address=10.0.0.1/24\n", body["config_data"])
	assert.Equal(t, "No issues found.", body["ai_analysis"])

	require.Len(t, s.requests, 1)
	req := s.requests[0]
	assert.Equal(t, domain.TargetKindDevice, req.Kind)
	assert.Equal(t, domain.DeviceTypeMikrotik, req.DeviceType)
	assert.Equal(t, "secret", req.Credentials.Password)
	assert.Equal(t, []string{"k"}, s.apiKeys)
}

func TestDeviceRoute_Errors(t *testing.T) {
	s := &stubScanner{result: domain.DeviceConfigError("Authentication failed. Please check username and password.")}
	r := newTestRouter(s, RouterConfig{})

	w, body := post(t, r, "/network_device_target", `{"device_type":"mikrotik","host":"10.0.0.1","username":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]interface{}{"status": "error", "message": "Missing required fields."}, body)

	w, body = post(t, r, "/network_device_target", `{"device_type":"mikrotik","host":"10.0.0.1","username":"admin","password":"bad"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Authentication failed. Please check username and password.", body["message"])
	assert.NotContains(t, body, "ai_analysis")
	assert.Empty(t, s.apiKeys, "failed fetches are never analyzed")
}

func TestEmailRoute(t *testing.T) {
	s := &stubScanner{result: domain.EmailAnalysisCompleted([]string{"Domain: example.com"})}
	r := newTestRouter(s, RouterConfig{})

	w, body := post(t, r, "/email_target", `{"target_email":"ops@example.com"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, []interface{}{"Domain: example.com"}, body["results"])

	w, body = post(t, r, "/email_target", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Target email cannot be empty", body["error"])
}

func TestAnalyzeRoute(t *testing.T) {
	s := &stubScanner{analysis: domain.AnalysisCompleted("## Summary\nAll good.")}
	r := newTestRouter(s, RouterConfig{})

	w, body := post(t, r, "/analyze_results", `{"api_key":"k","results":"22/tcp open ssh"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "## Summary\nAll good.", body["analysis"])

	w, body = post(t, r, "/analyze_results", `{"results":"22/tcp open ssh"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "API key and results are required.", body["error"])

	s.analysis = domain.AnalysisError("400 INVALID_ARGUMENT: API key not valid")
	w, body = post(t, r, "/analyze_results", `{"api_key":"bad","results":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "400 INVALID_ARGUMENT: API key not valid", body["error"])
}

func TestGenericScanRoute(t *testing.T) {
	s := &stubScanner{result: domain.Success("done")}
	r := newTestRouter(s, RouterConfig{})

	w, body := post(t, r, "/api/scan", `{"kind":"network","scan_type":"ping","target":"10.0.0.1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "scan-1", body["scan_id"])
	assert.Equal(t, "network", body["kind"])
	assert.Equal(t, false, body["failed"])
	assert.Equal(t, float64(1500), body["elapsed_ms"])
	assert.Equal(t, map[string]interface{}{"stdout": "done", "stderr": nil}, body["result"])

	w, body = post(t, r, "/api/scan", `{"scan_type":"ping","target":"10.0.0.1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "kind and target are required.", body["error"])
}

func TestScanTypesAndHealth(t *testing.T) {
	r := newTestRouter(&stubScanner{}, RouterConfig{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/scan-types", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Adapters    []adapter.AdapterInfo `json:"adapters"`
		DeviceTypes []domain.DeviceType   `json:"device_types"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Adapters, 1)
	assert.Equal(t, "probe", body.Adapters[0].Name)
	assert.Equal(t, domain.SupportedDeviceTypes(), body.DeviceTypes)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestOptionalMounts(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("neti_scans_total 1\n")) })
	r := newTestRouter(&stubScanner{}, RouterConfig{Metrics: metrics, MetricsPath: "/prom"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/prom", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "neti_scans_total")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecovery(t *testing.T) {
	r := newTestRouter(&stubScanner{panics: true}, RouterConfig{})

	w, body := post(t, r, "/run_ping", `{"target":"10.0.0.1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "An unexpected error occurred: boom", body["error"])
}

func TestRateLimit(t *testing.T) {
	s := &stubScanner{result: domain.Success("ok")}
	limiter := NewRateLimiter(0.5, 1, nil)
	r := newTestRouter(s, RouterConfig{Limiter: limiter})

	w, _ := post(t, r, "/run_ping", `{"target":"10.0.0.1"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := post(t, r, "/run_ping", `{"target":"10.0.0.1"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Rate limit exceeded", body["error"])
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Len(t, s.requests, 1)

	// read-only routes are not throttled
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, limiter.Clients())
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(0, 0, nil)
	assert.False(t, l.Enabled())
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("10.0.0.1"))
	}
	assert.Zero(t, l.Clients())

	var nilLimiter *RateLimiter
	assert.False(t, nilLimiter.Enabled())
}

func TestRateLimiter_SetLimit(t *testing.T) {
	s := &stubScanner{result: domain.Success("ok")}
	limiter := NewRateLimiter(0, 1, nil)
	r := newTestRouter(s, RouterConfig{Limiter: limiter})

	for i := 0; i < 3; i++ {
		w, _ := post(t, r, "/run_ping", `{"target":"10.0.0.1"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	// a reload turns throttling on without rebuilding the router
	limiter.SetLimit(0.25, 1)
	w, _ := post(t, r, "/run_ping", `{"target":"10.0.0.1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = post(t, r, "/run_ping", `{"target":"10.0.0.1"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "4", w.Header().Get("Retry-After"))
}

func TestRateLimiter_PrunesIdleClients(t *testing.T) {
	l := NewRateLimiter(1, 1, nil)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i <= limiterPruneSize; i++ {
		l.Allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	before := l.Clients()
	require.Greater(t, before, limiterPruneSize)

	now = now.Add(limiterIdleTTL + time.Second)
	l.Allow("192.0.2.1")
	assert.Equal(t, 1, l.Clients())
}
