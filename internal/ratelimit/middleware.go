package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// MiddlewareOptions configure how clients are identified and rejections reported.
type MiddlewareOptions struct {
	// TrustProxy takes the client address from the last X-Forwarded-For hop
	// or X-Real-IP.
	TrustProxy bool
	Logger     *zap.Logger
	// OnLimited is called for every rejected request.
	OnLimited func(limiter string)
}

// ClientIP returns the request's client address without port. With
// trustProxy the rightmost X-Forwarded-For entry is used, since that is the
// hop appended by the proxy in front of the server; earlier entries are
// supplied by the client.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			hops := strings.Split(fwd, ",")
			for i := len(hops) - 1; i >= 0; i-- {
				if ip := strings.TrimSpace(hops[i]); ip != "" {
					return ip
				}
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	return peerIP(r)
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}

// Middleware rejects clients over the limit with 429. Requests that both
// arrive from and originate on the loopback interface are never limited.
// Store failures are logged and the request is let through.
func (l *Limiter) Middleware(opts MiddlewareOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, opts.TrustProxy)
			// Forwarding headers alone never grant the exemption.
			if isLoopback(peerIP(r)) && isLoopback(ip) {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Allow(r.Context(), ip)
			if err != nil {
				logger.Error("rate limiter unavailable", zap.String("limiter", l.name), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))

			if !res.Allowed {
				logger.Warn("rate limit exceeded",
					zap.String("limiter", l.name),
					zap.String("ip", ip),
					zap.String("path", r.URL.Path))
				if opts.OnLimited != nil {
					opts.OnLimited(l.name)
				}

				retryAfter := int(res.Reset.Sub(l.now()).Seconds()) + 1
				h.Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests, please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
