package mid

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	v1 "github.com/leakwatch/blockchain/business/web/v1"
	"github.com/leakwatch/blockchain/foundation/web"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a client sends requests faster than
// allowed.
var ErrRateLimited = errors.New("rate limit exceeded")

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit enforces a per client IP token bucket. rps is the steady state
// requests per second and burst the largest burst allowed. Clients not seen
// for ten minutes are forgotten on the next request.
func RateLimit(rps float64, burst int) web.Middleware {
	var mu sync.Mutex
	limiters := make(map[string]*ipLimiter)
	lastSweep := time.Now()

	allow := func(ip string) bool {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if now.Sub(lastSweep) > 5*time.Minute {
			for k, l := range limiters {
				if now.Sub(l.lastSeen) > 10*time.Minute {
					delete(limiters, k)
				}
			}
			lastSweep = now
		}

		l, ok := limiters[ip]
		if !ok {
			l = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			limiters[ip] = l
		}
		l.lastSeen = now

		return l.limiter.Allow()
	}

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !allow(clientIP(r)) {
				w.Header().Set("Retry-After", "1")
				return v1.NewRequestError(ErrRateLimited, http.StatusTooManyRequests)
			}

			// Call the next handler.
			return handler(ctx, w, r)
		}

		return h
	}

	return m
}

// clientIP returns the host part of the remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
