package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// MsgTooManyAttempts is returned when a client exceeds its login budget
const MsgTooManyAttempts = "Too many login attempts, try again later"

// limiterIdle is how long an unused per-client limiter is kept
const limiterIdle = 10 * time.Minute

// loginLimiter keeps one token bucket per client address
type loginLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter
	nowFunc func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newLoginLimiter allows perMinute attempts per client with bursts of the
// same size
func newLoginLimiter(perMinute int) *loginLimiter {
	return &loginLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		clients: make(map[string]*clientLimiter),
		nowFunc: time.Now,
	}
}

// allow spends one token of the client's bucket
func (l *loginLimiter) allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	for addr, c := range l.clients {
		if now.Sub(c.lastSeen) > limiterIdle {
			delete(l.clients, addr)
		}
	}

	c, ok := l.clients[client]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// limitLogins rejects clients that exhausted their login budget with 429
func (s *Server) limitLogins() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || s.limiter.allow(c.ClientIP()) {
			c.Next()
			return
		}
		s.countLogin(resultThrottled)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": MsgTooManyAttempts})
	}
}
