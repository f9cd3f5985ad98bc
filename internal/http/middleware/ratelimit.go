// Package middleware contains the Gin middleware shared by the HTTP layer.
//
// RateLimiter is a process-local token bucket per client, built on
// golang.org/x/time/rate. Idle buckets are evicted opportunistically.
// The webhook route and the SSE stream are usually listed in SkipPaths so
// Avito deliveries and long-lived streams never see a 429.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type keyFunc func(*gin.Context) string

// KeyByIP buckets requests by client address.
func KeyByIP() keyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// KeyByTokenOrIP buckets authenticated operators by a short token prefix and
// everybody else by address.
func KeyByTokenOrIP() keyFunc {
	return func(c *gin.Context) string {
		if tok := Credential(c, HeaderCRMToken, "token"); tok != "" {
			if len(tok) > 8 {
				tok = tok[:8]
			}
			return "tok:" + tok
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	skip     map[string]struct{}
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter builds a limiter. rps <= 0 disables limiting; burst <= 0
// becomes 1. skipPaths are matched against the registered route.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc, skipPaths ...string) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	lim := rate.Limit(rps)
	if rps <= 0 {
		lim = rate.Inf
	}
	if keyFn == nil {
		keyFn = KeyByIP()
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return &RateLimiter{
		rps:      lim,
		burst:    burst,
		keyFn:    keyFn,
		skip:     skip,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor runs eviction before touching key so a stale bucket for key
// itself can be dropped.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replay.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler answers 429 with Retry-After: 1 once a bucket is empty.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rps == rate.Inf || IsRateBypass(c) {
			c.Next()
			return
		}
		if _, ok := rl.skip[c.FullPath()]; ok {
			c.Next()
			return
		}
		if rl.getVisitor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"ok":         false,
			"request_id": RequestIDFrom(c),
			"error":      "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
