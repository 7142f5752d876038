package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterHandle_BlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := newRateLimiter(0.5, 2)
	limiter.now = func() time.Time { return now }

	call := func() (*gin.Context, *httptest.ResponseRecorder) {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest("GET", "/api/search?query=llm", nil)
		limiter.handle(c)
		return c, rec
	}
	c1, _ := call()
	require.False(t, c1.IsAborted())
	c2, _ := call()
	require.False(t, c2.IsAborted())
	c3, rec := call()
	require.True(t, c3.IsAborted())
	require.Equal(t, 429, rec.Code)

	now = now.Add(2 * time.Second)
	c4, _ := call()
	require.False(t, c4.IsAborted())
}

func TestRateLimiterCleanupExpiredLocked_RemovesIdleClients(t *testing.T) {
	base := time.Now()
	limiter := newRateLimiter(1, 1)
	limiter.clients["idle"] = &clientBucket{lastSeen: base.Add(-20 * time.Minute)}
	limiter.clients["active"] = &clientBucket{lastSeen: base.Add(-2 * time.Second)}

	limiter.mu.Lock()
	limiter.cleanupExpiredLocked(base)
	limiter.mu.Unlock()

	require.NotContains(t, limiter.clients, "idle")
	require.Contains(t, limiter.clients, "active")
	require.False(t, limiter.lastSweep.IsZero())
}

func TestRateLimiterDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := newRateLimiter(0, 0)
	for i := 0; i < 5; i++ {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/", nil)
		limiter.handle(c)
		require.False(t, c.IsAborted())
	}
}
