// ABOUTME: Bearer auth, per-key token-bucket rate limiting, CORS and logging middleware (spec.md section 6)
package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// withLogging logs method/path/status/duration, grounded on the teacher's
// plain structured-logging style via charmbracelet/log.
func withLogging() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request", "method", r.Method, "path", r.URL.Path, "status", sw.status, "duration", time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withRecover converts a panicking handler into a 500 rather than killing
// the listener goroutine.
func withRecover() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic in handler", "path", r.URL.Path, "recovered", rec)
					writeError(w, internalErr("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// withCORS reflects the configured allowed origins, or allows all when
// none are configured (local/dev default).
func withCORS(allowedOrigins []string) middleware {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// withAuth requires a Bearer token matching the configured API key, either
// by constant-time equality (a static key) or by verifying it as a JWT
// signed with that key as an HMAC secret (spec.md section 6's "Bearer
// token, >=32 chars" requirement, extended to accept either form).
func withAuth(apiKey string) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			authz := r.Header.Get("Authorization")
			token := strings.TrimPrefix(authz, "Bearer ")
			if token == authz || token == "" {
				writeError(w, unauthorizedErr("missing bearer token"))
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			if looksLikeJWT(token) {
				parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
					return []byte(apiKey), nil
				}, jwt.WithValidMethods([]string{"HS256"}))
				if err == nil && parsed.Valid {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, unauthorizedErr("invalid bearer token"))
		})
	}
}

func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

// withRateLimit enforces a token bucket per API key (spec.md section 6),
// keyed by the raw bearer token so distinct clients sharing a deployment
// get independent budgets.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newLimiterStore(rps float64, burst int) *limiterStore {
	return &limiterStore{limiters: make(map[string]*rate.Limiter), rps: rate.Limit(rps), burst: burst}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.rps, s.burst)
		s.limiters[key] = l
	}
	return l
}

func withRateLimit(store *limiterStore) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Authorization")
			if key == "" {
				key = r.RemoteAddr
			}
			if !store.get(key).Allow() {
				writeError(w, rateLimitedErr("rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
