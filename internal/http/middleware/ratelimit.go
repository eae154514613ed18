// README: Per-client rate limiting backed by golang.org/x/time.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientEvictAfter is how long an idle client keeps its limiter.
const clientEvictAfter = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	rpm     int
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func NewRateLimiter(rpm int) *RateLimiter {
	if rpm <= 0 {
		rpm = 120
	}
	return &RateLimiter{rpm: rpm, clients: map[string]*clientLimiter{}}
}

func (m *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (m *RateLimiter) allow(clientIP string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cl, ok := m.clients[clientIP]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.rpm)), m.rpm),
		}
		m.clients[clientIP] = cl
	}
	cl.lastSeen = time.Now()
	m.gcLocked()
	return cl.limiter.Allow()
}

func (m *RateLimiter) gcLocked() {
	cutoff := time.Now().Add(-clientEvictAfter)
	for ip, cl := range m.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}
