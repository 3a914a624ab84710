package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/volforecast/internal/domain/dto"
)

// client is one IP's request count inside the current window.
type client struct {
	windowStart time.Time
	count       int
}

type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   int
	window  time.Duration
	now     func() time.Time
}

// RateLimiter allows up to limit requests per window for each client IP and
// answers 429 beyond that. A limit below 1 disables limiting.
//
// State is per process; with several instances each one enforces its own
// budget.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	if limit < 1 {
		return func(c *gin.Context) { c.Next() }
	}
	rl := &rateLimiter{clients: make(map[string]*client), limit: limit, window: window, now: time.Now}
	return rl.handle
}

func (rl *rateLimiter) allow(ip string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[ip]
	if !ok || now.Sub(cl.windowStart) > rl.window {
		if len(rl.clients) > 10_000 {
			rl.prune(now)
		}
		rl.clients[ip] = &client{windowStart: now, count: 1}
		return true
	}
	cl.count++
	return cl.count <= rl.limit
}

// prune drops clients whose window has expired. Caller holds mu.
func (rl *rateLimiter) prune(now time.Time) {
	for ip, cl := range rl.clients {
		if now.Sub(cl.windowStart) > rl.window {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) handle(c *gin.Context) {
	if !rl.allow(c.ClientIP()) {
		c.Header("Retry-After", retryAfter(rl.window))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse("rate limit exceeded", nil))
		return
	}
	c.Next()
}

func retryAfter(window time.Duration) string {
	secs := int(window.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
