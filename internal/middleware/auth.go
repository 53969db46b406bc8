// Package middleware provides HTTP middleware for the care layer.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/SilverCare-Net/care_layer/internal/app/auth"
	"github.com/SilverCare-Net/care_layer/internal/errors"
	internalhttputil "github.com/SilverCare-Net/care_layer/internal/httputil"
	"github.com/SilverCare-Net/care_layer/internal/logging"
)

// AuthMiddleware validates bearer tokens and establishes the caller identity
// on the request context.
type AuthMiddleware struct {
	issuer       *auth.Issuer
	logger       *logging.Logger
	skipPaths    map[string]bool
	skipPrefixes []string
}

// NewAuthMiddleware creates an authentication middleware. Requests to the
// listed paths pass through without a token; a path ending in "/" matches as
// a prefix, which covers the media file routes.
func NewAuthMiddleware(issuer *auth.Issuer, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
	if logger == nil {
		logger = logging.NewDefault("auth")
	}
	skip := make(map[string]bool)
	var prefixes []string
	for _, path := range skipPaths {
		if strings.HasSuffix(path, "/") {
			prefixes = append(prefixes, path)
			continue
		}
		skip[path] = true
	}

	return &AuthMiddleware{
		issuer:       issuer,
		logger:       logger,
		skipPaths:    skip,
		skipPrefixes: prefixes,
	}
}

func (m *AuthMiddleware) skipped(path string) bool {
	if m.skipPaths[path] {
		return true
	}
	for _, prefix := range m.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipped(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, errors.Unauthorized("Missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.respondError(w, r, errors.Unauthorized("Invalid Authorization header format"))
			return
		}

		claims, err := m.issuer.ParseAccess(parts[1])
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("Token validation failed")
			m.respondError(w, r, err)
			return
		}

		ctx := auth.WithIdentity(r.Context(), auth.Identity{
			UserID: claims.UserID,
			Groups: claims.Groups,
			Admin:  claims.Admin,
		})
		ctx = context.WithValue(ctx, logging.UserIDKey, claims.UserID)
		if len(claims.Groups) > 0 {
			ctx = context.WithValue(ctx, logging.RoleKey, strings.Join(claims.Groups, ","))
		}

		m.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"user_id": claims.UserID,
			"admin":   claims.Admin,
		}).Debug("Authentication successful")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Authentication failed", err)
	}

	internalhttputil.WriteErrorResponse(w, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("Authentication failed")
}

// RequireGroups denies callers that hold none of the named groups. Admins
// bypass the check.
func RequireGroups(groups ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				internalhttputil.Unauthorized(w, "")
				return
			}
			if !caller.Admin && !caller.InAnyGroup(groups) {
				internalhttputil.WriteServiceError(w, errors.PermissionDenied(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserID extracts the authenticated user id from context.
func GetUserID(ctx context.Context) string {
	if caller, ok := auth.IdentityFromContext(ctx); ok {
		return caller.UserID
	}
	return ""
}
