package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/papercast/internal/pkg/response"
)

const defaultIdleTTL = 10 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	mu            sync.Mutex
	limit         rate.Limit
	burst         int
	idleTTL       time.Duration
	clients       map[string]*clientBucket
	sweepInterval time.Duration
	lastSweep     time.Time
	now           func() time.Time
}

// RateLimit gives each client IP a token bucket refilled at rps with room for burst requests.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	return newRateLimiter(rps, burst).handle
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	return &rateLimiter{
		limit:         rate.Limit(rps),
		burst:         burst,
		idleTTL:       defaultIdleTTL,
		clients:       make(map[string]*clientBucket),
		sweepInterval: time.Minute,
		now:           time.Now,
	}
}

func (l *rateLimiter) handle(c *gin.Context) {
	if l.limit <= 0 || l.burst <= 0 {
		c.Next()
		return
	}
	ip := c.ClientIP()
	if !l.allow(ip) {
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
			zap.String("ip", ip),
			zap.String("path", c.Request.URL.Path),
		)
		response.Error(c, http.StatusTooManyRequests, "Too many requests, please try again later.")
		c.Abort()
		return
	}
	c.Next()
}

func (l *rateLimiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) >= l.sweepInterval {
		l.cleanupExpiredLocked(now)
	}
	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (l *rateLimiter) cleanupExpiredLocked(now time.Time) {
	for key, b := range l.clients {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}
