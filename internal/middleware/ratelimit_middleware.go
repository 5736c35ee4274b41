package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/sellergate/sellergate_api/internal/utils"
)

// SyncRateLimiter throttles manual sync triggers per client IP. A full
// catalog pull is expensive upstream; the limiter keeps a misbehaving
// dashboard from queueing them back to back.
type SyncRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rps      rate.Limit
	burst    int
	stop     chan struct{}
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSyncRateLimiter constructs a limiter allowing rps requests per
// second with the given burst per IP.
func NewSyncRateLimiter(rps float64, burst int) *SyncRateLimiter {
	rl := &SyncRateLimiter{
		limiters: make(map[string]*ipLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Stop terminates the idle-entry cleanup goroutine.
func (r *SyncRateLimiter) Stop() {
	close(r.stop)
}

// Middleware rejects requests exceeding the per-IP rate with 429.
func (r *SyncRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.allow(c.ClientIP()) {
			utils.Error(c, 429, "RATE_LIMITED", "Too many sync requests, slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (r *SyncRateLimiter) allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(r.rps, r.burst)}
		r.limiters[ip] = l
	}
	l.lastSeen = time.Now()
	return l.limiter.Allow()
}

func (r *SyncRateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictIdle(time.Now())
		}
	}
}

func (r *SyncRateLimiter) evictIdle(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ip, l := range r.limiters {
		if now.Sub(l.lastSeen) > 10*time.Minute {
			delete(r.limiters, ip)
		}
	}
}
