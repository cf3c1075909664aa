package handler

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit bounds the request rate across the public surface. Statement
// parsing is the expensive path; the burst absorbs a client submitting a
// handful of statements at once.
func RateLimit(perSecond float64, burst int, next http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
