package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimit enforces a per-client-IP token bucket, guarding the mutating
// control routes (/publish_node, /inject_conf, /inject_prp, /kill,
// /set-byz-behavior, /abd/write) from
// accidental hammering by a test harness. limit and burst follow
// golang.org/x/time/rate's semantics: limit events per second, burst peak.
func RateLimit(limit rate.Limit, burst int) Middleware {
	limiters := &perIPLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(clientIP(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Request-ID", GetRequestID(r.Context()))
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"status":     "rate_limited",
					"message":    "too many requests",
					"request_id": GetRequestID(r.Context()),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type perIPLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func (p *perIPLimiters) allow(ip string) bool {
	p.mu.Lock()
	l, ok := p.limiters[ip]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[ip] = l
	}
	p.mu.Unlock()
	return l.Allow()
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
