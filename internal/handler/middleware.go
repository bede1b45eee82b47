package handler

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RequestLogger logs one line per request. Health and metrics scrapes are
// logged at debug so they do not drown out scan traffic.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	log = log.WithField("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		entry := log.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		if id := c.Writer.Header().Get(scanIDHeader); id != "" {
			entry = entry.WithField("scan_id", id)
		}

		switch {
		case path == "/healthz" || path == "/metrics":
			entry.Debug("HTTP: request")
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Warn("HTTP: request failed")
		default:
			entry.Info("HTTP: request")
		}
	}
}

// Recovery converts a handler panic into a 500 JSON body
func Recovery(log logrus.FieldLogger) gin.HandlerFunc {
	log = log.WithField("component", "http")
	return gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		log.WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"panic": err,
		}).Error("HTTP: handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("An unexpected error occurred: %v", err),
		})
	})
}

const (
	limiterIdleTTL   = 10 * time.Minute
	limiterPruneSize = 500
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// RateLimiter throttles scan routes per client IP
type RateLimiter struct {
	log logrus.FieldLogger

	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientLimiter
	now     func() time.Time
}

// NewRateLimiter allows perSecond sustained requests per client with the
// given burst. A non-positive rate disables limiting.
func NewRateLimiter(perSecond float64, burst int, log logrus.FieldLogger) *RateLimiter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := &RateLimiter{
		log:     log.WithField("component", "ratelimit"),
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
	l.SetLimit(perSecond, burst)
	return l
}

// SetLimit changes the rate for new and already tracked clients
func (l *RateLimiter) SetLimit(perSecond float64, burst int) {
	if burst < 1 {
		burst = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.limit = rate.Limit(perSecond)
	l.burst = burst
	for _, c := range l.clients {
		c.limiter.SetLimit(l.limit)
		c.limiter.SetBurst(burst)
	}
}

// Enabled reports whether requests are limited at all
func (l *RateLimiter) Enabled() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit > 0
}

// Allow consumes one token for ip
func (l *RateLimiter) Allow(ip string) bool {
	if !l.Enabled() {
		return true
	}
	return l.get(ip).Allow()
}

func (l *RateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.clients) > limiterPruneSize {
		for k, c := range l.clients {
			if now.Sub(c.lastUsed) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.log.WithField("remaining", len(l.clients)).Debug("RateLimit: pruned idle clients")
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastUsed = now
	return c.limiter
}

// Clients returns the number of tracked client IPs
func (l *RateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// retryAfter is the whole seconds until one token refills
func (l *RateLimiter) retryAfter() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit <= 0 {
		return 1
	}
	retry := int(math.Ceil(1 / float64(l.limit)))
	if retry < 1 {
		retry = 1
	}
	return retry
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
// It checks the current rate on every request, so SetLimit applies at once.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if l.Allow(ip) {
			c.Next()
			return
		}

		l.log.WithFields(logrus.Fields{
			"client_ip": ip,
			"path":      c.Request.URL.Path,
		}).Warn("RateLimit: request rejected")

		c.Header("Retry-After", strconv.Itoa(l.retryAfter()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
	}
}
