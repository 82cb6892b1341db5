package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modern-blog/internal/config"
	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/policy"
	"github.com/modern-blog/internal/service"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// actorKey is the gin context key holding the resolved policy.Actor
const actorKey = "actor"

// actorFrom returns the actor resolved for the request
func actorFrom(c *gin.Context) policy.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(policy.Actor); ok {
			return actor
		}
	}
	return policy.Anonymous
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger, responder errorResponder) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Str("path", c.Request.URL.Path).Msg("Panic recovered")
				responder.respondError(c, errs.NewUnexpected("Internal server error", nil), "", nil)
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}
		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.String())
		}
		if actor := actorFrom(c); !actor.IsAnonymous() {
			event = event.Str("actor_id", actor.ID)
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware allows credentialed requests from the configured origin
func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin != "" && c.GetHeader("Origin") == origin {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// securityHeaders sets the usual hardening headers on every response
func securityHeaders(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data: https:; style-src 'self' 'unsafe-inline'; object-src 'none'; frame-ancestors 'self'")
		if production {
			h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		}
		c.Next()
	}
}

// visitor is the token bucket of one client IP
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter hands out one limiter per client IP and forgets clients
// idle for longer than a window.
type ipRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
}

func newIPRateLimiter(requests int, window time.Duration) *ipRateLimiter {
	return &ipRateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     rate.Every(window / time.Duration(requests)),
		burst:     requests,
		window:    window,
		lastSweep: time.Now(),
	}
}

func (l *ipRateLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.window {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.window {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// rateLimitMiddleware rejects clients exceeding requests per window.
// A zero limit disables it.
func rateLimitMiddleware(requests int, window time.Duration) gin.HandlerFunc {
	if requests <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := newIPRateLimiter(requests, window)
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP(), time.Now()) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests from this IP, please try again later.",
			})
			return
		}
		c.Next()
	}
}

// timeoutMiddleware bounds the request context so database work is
// abandoned when a request runs too long.
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// sessionMiddleware resolves the session token from the cookie or a
// Bearer header. A token that fails to resolve leaves the request
// anonymous and the cookie is cleared.
func sessionMiddleware(auth service.AuthService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromCookie := sessionToken(c, cfg.Auth.CookieName)
		actor, discard := auth.Resolve(c.Request.Context(), token)
		if discard && fromCookie {
			clearSessionCookie(c, cfg)
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func sessionToken(c *gin.Context, cookieName string) (string, bool) {
	if token, err := c.Cookie(cookieName); err == nil && token != "" {
		return token, true
	}
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")), false
	}
	return "", false
}

func setSessionCookie(c *gin.Context, cfg *config.Config, session *service.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cfg.Auth.CookieName, session.Token, maxAge, "/", "", cfg.Server.IsProduction(), true)
}

func clearSessionCookie(c *gin.Context, cfg *config.Config) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cfg.Auth.CookieName, "", -1, "/", "", cfg.Server.IsProduction(), true)
}

// authorize gates a route on a policy action that needs no resource
func authorize(action policy.Action, responder errorResponder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := policy.Authorize(actorFrom(c), action, policy.Resource{}).Err(); err != nil {
			responder.respondError(c, err, "", nil)
			return
		}
		c.Next()
	}
}

// requireAuth rejects anonymous requests. Browsers are sent to the login page.
func requireAuth(responder errorResponder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorFrom(c).IsAnonymous() {
			responder.respondError(c, errs.NewAuthentication("Access denied. Please log in."), "", nil)
			return
		}
		c.Next()
	}
}
