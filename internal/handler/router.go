package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RouterConfig collects the pieces mounted beside the scan routes
type RouterConfig struct {
	// Mode is the gin mode; empty keeps gin's current mode
	Mode string
	// Limiter throttles scan routes; nil disables throttling for good
	Limiter *RateLimiter
	// Metrics is served at MetricsPath when non-nil
	Metrics     http.Handler
	MetricsPath string
	// Events streams scan events over SSE when non-nil
	Events http.Handler
	Log    logrus.FieldLogger
}

// NewRouter builds the HTTP API
func NewRouter(h *ScanHandler, cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(Recovery(log), RequestLogger(log))

	scans := r.Group("/")
	if cfg.Limiter != nil {
		scans.Use(cfg.Limiter.Middleware())
	}
	scans.POST("/run_ping", h.Ping)
	scans.POST("/run_traceroute", h.Traceroute)
	scans.POST("/run_nslookup", h.Nslookup)
	scans.POST("/run_nmap", h.Nmap)
	scans.POST("/run_domain_scan", h.DomainScan)
	scans.POST("/network_device_target", h.Device)
	scans.POST("/email_target", h.Email)
	scans.POST("/analyze_results", h.Analyze)
	scans.POST("/api/scan", h.Scan)

	r.GET("/api/scan-types", h.ScanTypes)
	r.GET("/healthz", h.Health)

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.Metrics))
	}
	if cfg.Events != nil {
		r.GET("/api/events", gin.WrapH(cfg.Events))
	}

	return r
}
