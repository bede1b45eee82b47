package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"neti/internal/adapter"
	"neti/internal/domain"
	"neti/internal/service"
)

// Scanner runs scans and reports; service.ScanService satisfies it
type Scanner interface {
	Scan(ctx context.Context, req domain.ScanRequest) service.ScanOutcome
	Analyze(ctx context.Context, apiKey, results string) domain.AnalysisResult
	DeviceAnalysis(ctx context.Context, apiKey string, res domain.DeviceConfigResult) string
}

// AdapterLister reports adapter availability; adapter.Registry satisfies it
type AdapterLister interface {
	ListAdapters() []adapter.AdapterInfo
}

// ScanHandler handles scan API requests
type ScanHandler struct {
	svc      Scanner
	adapters AdapterLister
}

// NewScanHandler creates a new scan handler
func NewScanHandler(svc Scanner, adapters AdapterLister) *ScanHandler {
	return &ScanHandler{svc: svc, adapters: adapters}
}

const (
	scanIDHeader       = "X-Scan-ID"
	invalidBodyMessage = "Invalid request body"
)

type targetRequest struct {
	Target string `json:"target"`
}

type nmapRequest struct {
	Target   string `json:"target"`
	ScanType string `json:"scan_type"`
}

type domainRequest struct {
	TargetDomain string `json:"target_domain"`
	ScanType     string `json:"scan_type"`
}

type deviceRequest struct {
	DeviceType string `json:"device_type"`
	Host       string `json:"host"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	APIKey     string `json:"api_key"`
}

type emailRequest struct {
	TargetEmail string `json:"target_email"`
}

type analyzeRequest struct {
	APIKey  string `json:"api_key"`
	Results string `json:"results"`
}

// scanRequest is the generic body of POST /api/scan
type scanRequest struct {
	Kind        domain.TargetKind   `json:"kind"`
	ScanType    domain.ScanType     `json:"scan_type"`
	Target      string              `json:"target"`
	DeviceType  domain.DeviceType   `json:"device_type,omitempty"`
	Credentials *domain.Credentials `json:"credentials,omitempty"`
}

type scanResponse struct {
	ScanID    string            `json:"scan_id"`
	Kind      domain.TargetKind `json:"kind"`
	ScanType  domain.ScanType   `json:"scan_type,omitempty"`
	Failed    bool              `json:"failed"`
	ElapsedMS int64             `json:"elapsed_ms"`
	Result    domain.Envelope   `json:"result"`
}

// Ping handles POST /run_ping
func (h *ScanHandler) Ping(c *gin.Context) {
	h.runProbe(c, domain.ScanTypePing)
}

// Traceroute handles POST /run_traceroute
func (h *ScanHandler) Traceroute(c *gin.Context) {
	h.runProbe(c, domain.ScanTypeTraceroute)
}

// Nslookup handles POST /run_nslookup
func (h *ScanHandler) Nslookup(c *gin.Context) {
	h.runProbe(c, domain.ScanTypeNslookup)
}

func (h *ScanHandler) runProbe(c *gin.Context, scanType domain.ScanType) {
	var req targetRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Target) == "" {
		writeError(c, http.StatusBadRequest, "Target cannot be empty")
		return
	}

	h.writeOutput(c, h.svc.Scan(c.Request.Context(), domain.ScanRequest{
		Kind:     domain.TargetKindNetwork,
		ScanType: scanType,
		Target:   req.Target,
	}))
}

// Nmap handles POST /run_nmap
func (h *ScanHandler) Nmap(c *gin.Context) {
	var req nmapRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Target) == "" || req.ScanType == "" {
		writeError(c, http.StatusBadRequest, "Target and scan_type are required.")
		return
	}
	// probe names are not nmap profiles on this route
	if domain.ScanType(req.ScanType).IsProbe() {
		writeError(c, http.StatusOK, "Invalid scan type: "+req.ScanType)
		return
	}

	h.writeOutput(c, h.svc.Scan(c.Request.Context(), domain.ScanRequest{
		Kind:     domain.TargetKindNetwork,
		ScanType: domain.ScanType(req.ScanType),
		Target:   req.Target,
	}))
}

// writeOutput renders a process-backed result as {"result"} or {"error"}
func (h *ScanHandler) writeOutput(c *gin.Context, outcome service.ScanOutcome) {
	c.Header(scanIDHeader, outcome.ID)

	out, ok := outcome.Result.(domain.Output)
	if !ok {
		if outcome.Result.Failed() {
			writeError(c, http.StatusOK, outcome.Result.ErrorMessage())
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": outcome.Result})
		return
	}

	if out.Failed() {
		writeError(c, http.StatusOK, out.ErrorMessage())
		return
	}
	body := gin.H{"result": out.Text()}
	if out.Note != "" {
		body["note"] = out.Note
	}
	c.JSON(http.StatusOK, body)
}

// DomainScan handles POST /run_domain_scan
func (h *ScanHandler) DomainScan(c *gin.Context) {
	var req domainRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.TargetDomain) == "" {
		writeError(c, http.StatusBadRequest, "Target domain cannot be empty")
		return
	}

	outcome := h.svc.Scan(c.Request.Context(), domain.ScanRequest{
		Kind:     domain.TargetKindDomain,
		ScanType: domain.ScanType(req.ScanType),
		Target:   req.TargetDomain,
	})
	c.Header(scanIDHeader, outcome.ID)
	c.JSON(http.StatusOK, gin.H{"result": outcome.Result})
}

// Device handles POST /network_device_target
func (h *ScanHandler) Device(c *gin.Context) {
	var req deviceRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.DeviceType == "" || req.Host == "" || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, domain.DeviceConfigError("Missing required fields."))
		return
	}

	ctx := c.Request.Context()
	outcome := h.svc.Scan(ctx, domain.ScanRequest{
		Kind:        domain.TargetKindDevice,
		ScanType:    domain.ScanTypeDeviceConfig,
		Target:      req.Host,
		DeviceType:  domain.DeviceType(req.DeviceType),
		Credentials: &domain.Credentials{Username: req.Username, Password: req.Password},
	})
	c.Header(scanIDHeader, outcome.ID)

	res, ok := outcome.Result.(domain.DeviceConfigResult)
	if !ok {
		c.JSON(http.StatusOK, domain.DeviceConfigError(outcome.Result.ErrorMessage()))
		return
	}
	if res.Failed() {
		c.JSON(http.StatusOK, res)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      res.Status,
		"config_data": res.ConfigData,
		"ai_analysis": h.svc.DeviceAnalysis(ctx, req.APIKey, res),
	})
}

// Email handles POST /email_target
func (h *ScanHandler) Email(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.TargetEmail) == "" {
		writeError(c, http.StatusBadRequest, "Target email cannot be empty")
		return
	}

	outcome := h.svc.Scan(c.Request.Context(), domain.ScanRequest{
		Kind:     domain.TargetKindEmail,
		ScanType: domain.ScanTypeEmailAnalysis,
		Target:   req.TargetEmail,
	})
	c.Header(scanIDHeader, outcome.ID)
	c.JSON(http.StatusOK, outcome.Result)
}

// Analyze handles POST /analyze_results
func (h *ScanHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.APIKey == "" || strings.TrimSpace(req.Results) == "" {
		writeError(c, http.StatusBadRequest, "API key and results are required.")
		return
	}

	res := h.svc.Analyze(c.Request.Context(), req.APIKey, req.Results)
	if res.Failed() {
		writeError(c, http.StatusInternalServerError, res.Message)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": res.Analysis})
}

// Scan handles POST /api/scan
func (h *ScanHandler) Scan(c *gin.Context) {
	var req scanRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Kind == "" || strings.TrimSpace(req.Target) == "" {
		writeError(c, http.StatusBadRequest, "kind and target are required.")
		return
	}

	outcome := h.svc.Scan(c.Request.Context(), domain.ScanRequest{
		Kind:        req.Kind,
		ScanType:    req.ScanType,
		Target:      req.Target,
		DeviceType:  req.DeviceType,
		Credentials: req.Credentials,
	})
	c.Header(scanIDHeader, outcome.ID)
	c.JSON(http.StatusOK, scanResponse{
		ScanID:    outcome.ID,
		Kind:      req.Kind,
		ScanType:  req.ScanType,
		Failed:    outcome.Result.Failed(),
		ElapsedMS: outcome.Elapsed.Milliseconds(),
		Result:    outcome.Result,
	})
}

// ScanTypes handles GET /api/scan-types
func (h *ScanHandler) ScanTypes(c *gin.Context) {
	var adapters []adapter.AdapterInfo
	if h.adapters != nil {
		adapters = h.adapters.ListAdapters()
	}
	if adapters == nil {
		adapters = []adapter.AdapterInfo{}
	}
	c.JSON(http.StatusOK, gin.H{
		"adapters":     adapters,
		"device_types": domain.SupportedDeviceTypes(),
	})
}

// Health handles GET /healthz
func (h *ScanHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, http.StatusBadRequest, invalidBodyMessage)
		return false
	}
	return true
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
