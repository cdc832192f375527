package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimits holds one token bucket per client IP.
type clientLimits struct {
	mu      sync.Mutex
	buckets map[string]*bucketEntry
	rps     rate.Limit
	burst   int
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimits(rps, burst int) *clientLimits {
	return &clientLimits{
		buckets: make(map[string]*bucketEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// allow reports whether the client may proceed, creating its bucket on
// first sight.
func (cl *clientLimits) allow(ip string) bool {
	cl.mu.Lock()
	b, ok := cl.buckets[ip]
	if !ok {
		b = &bucketEntry{limiter: rate.NewLimiter(cl.rps, cl.burst)}
		cl.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	cl.mu.Unlock()

	return b.limiter.Allow()
}

// sweep drops buckets idle for longer than maxIdle.
func (cl *clientLimits) sweep(maxIdle time.Duration) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for ip, b := range cl.buckets {
		if time.Since(b.lastSeen) > maxIdle {
			delete(cl.buckets, ip)
		}
	}
}

// RateLimiter returns a Gin middleware that enforces per-IP token-bucket
// rate limiting. rps is the steady-state requests per second; burst is the
// maximum burst size. Idle buckets are swept every 5 minutes.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	limits := newClientLimits(rps, burst)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			limits.sweep(10 * time.Minute)
		}
	}()

	return func(c *gin.Context) {
		if !limits.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
