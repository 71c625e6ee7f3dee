package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type contextKey string

const subjectKey contextKey = "subject"

// subjectFrom returns the authenticated subject attached by Authenticate,
// if any.
func subjectFrom(r *http.Request) (string, bool) {
	s, ok := r.Context().Value(subjectKey).(string)
	return s, ok && s != ""
}

// Authenticate extracts a bearer token from the Authorization header and, if
// it validates, attaches the token's subject to the request context. It never
// rejects the request itself: a missing or bad token just leaves the request
// unauthenticated for Authorize to judge.
func (a *App) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			token := strings.TrimPrefix(auth, "Bearer ")
			claims, err := validateToken(token, time.Now())
			if err == nil {
				ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
				r = r.WithContext(ctx)
			}
			// why the token failed is deliberately not surfaced
		}
		next.ServeHTTP(w, r)
	})
}

// publicRoutes are path prefixes reachable without authentication.
var publicRoutes = []string{
	"/api/auth/register",
	"/api/auth/login",
	"/health",
	"/ready",
}

// Authorize rejects requests to protected routes that carry no authenticated
// subject. Runs after Authenticate and before any handler.
func (a *App) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, p := range publicRoutes {
			if strings.HasPrefix(r.URL.Path, p) {
				next.ServeHTTP(w, r)
				return
			}
		}
		if _, ok := subjectFrom(r); !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CORS middleware handles CORS headers
func (a *App) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimiter implements per-client rate limiting for the auth endpoints.
// bcrypt is deliberately slow, so unauthenticated credential guessing is the
// one place worth throttling in-process.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	perMin   int
	mu       sync.RWMutex
}

// NewRateLimiter returns nil when perMinute is not positive, which disables
// the RateLimit middleware.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &RateLimiter{limiters: make(map[string]*rate.Limiter), perMin: perMinute}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		limiter, exists = rl.limiters[key]
		if !exists {
			limiter = rate.NewLimiter(rate.Limit(rl.perMin)/60, rl.perMin)
			rl.limiters[key] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// RateLimit middleware enforces per-client-IP limits on credential endpoints
func (a *App) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.rateLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !a.rateLimiter.getLimiter(host).Allow() {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Logging middleware logs requests; runs after Authenticate so the subject
// is already on the request context
func (a *App) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		subject := "-"
		if s, ok := subjectFrom(r); ok {
			subject = s
		}

		log.Printf("[%s] %s %s %d %v (subject: %s)", r.Method, r.URL.Path, r.RemoteAddr, wrapped.statusCode, duration, subject)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// SecurityHeaders middleware adds security headers
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}
