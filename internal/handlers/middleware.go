package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"talkquest/internal/metrics"
	"talkquest/internal/models"
	"talkquest/internal/security"
	"talkquest/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const IdentityContextKey ContextKey = "identity"

// InternalTokenHeader carries the shared secret of internal callers
const InternalTokenHeader = "X-Internal-Token"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	verifier      *security.IdentityVerifier
	directory     *service.UserDirectory
	limiter       *security.RateLimiter
	internalToken string
	logger        *zap.Logger
}

// NewMiddleware creates a new middleware instance. limiter may be nil.
func NewMiddleware(verifier *security.IdentityVerifier, directory *service.UserDirectory, limiter *security.RateLimiter, internalToken string, logger *zap.Logger) *Middleware {
	return &Middleware{
		verifier:      verifier,
		directory:     directory,
		limiter:       limiter,
		internalToken: internalToken,
		logger:        logger,
	}
}

// RequireIdentity verifies the bearer token, mirrors the caller into the
// directory and stores the identity in the request context
func (m *Middleware) RequireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := security.BearerToken(r)
		if err != nil {
			respondWithError(w, m.logger, http.StatusUnauthorized, "Missing bearer token", "", nil)
			return
		}

		identity, err := m.verifier.Verify(token)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, security.ErrTokenExpired) {
				msg = "Token expired"
			}
			m.logger.Debug("Token rejected", zap.Error(err))
			respondWithError(w, m.logger, http.StatusUnauthorized, msg, "", nil)
			return
		}

		if m.limiter != nil && !m.limiter.Allow(identity.UserID) {
			respondWithError(w, m.logger, http.StatusTooManyRequests, "Too many requests", "", nil)
			return
		}

		if err := m.directory.Sync(r.Context(), *identity); err != nil {
			respondServiceError(w, m.logger, err)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, *identity)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole rejects callers whose role is not in roles. It must run inside RequireIdentity.
func (m *Middleware) RequireRole(roles ...models.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentityFromContext(r.Context())
			if !ok {
				respondWithError(w, m.logger, http.StatusUnauthorized, "Missing identity", "", nil)
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next(w, r)
					return
				}
			}
			respondWithError(w, m.logger, http.StatusForbidden, "Role not allowed", "", nil)
		}
	}
}

// RequireInternalToken guards service-to-service routes. With no configured
// token the routes are disabled.
func (m *Middleware) RequireInternalToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.internalToken == "" {
			respondWithError(w, m.logger, http.StatusNotFound, "Not found", "", nil)
			return
		}
		given := r.Header.Get(InternalTokenHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(m.internalToken)) != 1 {
			respondWithError(w, m.logger, http.StatusUnauthorized, "Invalid internal token", "", nil)
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging logs every request and counts it by route pattern and status
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_ip", security.GetClientIP(r)),
			)
		})
	}
}

// GetIdentityFromContext retrieves the caller identity from the request context
func GetIdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(models.Identity)
	return identity, ok
}
