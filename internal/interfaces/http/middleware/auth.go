package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/auth"
	"github.com/printmarket/backend/internal/infrastructure/logger"
	"github.com/printmarket/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Context keys for the verified caller
const (
	IdentityKey = "identity"
	UserIDKey   = "user_id"
	RoleKey     = "role"
)

// AccessTokenQueryParam lets EventSource clients, which cannot set headers,
// authenticate the stream endpoint.
const AccessTokenQueryParam = "access_token"

// Authenticate verifies the bearer credential and stores the caller identity
// in the gin context and the request context.
func Authenticate(verifier auth.IdentityVerifier, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortUnauthorized(c, "Missing bearer token")
			return
		}

		id, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrProviderFailure):
				logger.Enrich(c.Request.Context(), log).Error("Identity provider unavailable", zap.Error(err))
				abortWithCode(c, http.StatusServiceUnavailable, dto.ErrCodeInternal, "Identity provider unavailable")
			case errors.Is(err, auth.ErrExpiredToken):
				abortUnauthorized(c, "Token has expired")
			default:
				abortUnauthorized(c, "Invalid token")
			}
			return
		}
		if !id.Role.IsValid() {
			abortWithCode(c, http.StatusForbidden, shared.CodeForbidden, "Unknown role")
			return
		}

		c.Set(IdentityKey, id)
		c.Set(UserIDKey, id.ID.String())
		c.Set(RoleKey, id.Role.String())
		ctx := logger.WithCaller(c.Request.Context(), id.ID.String(), id.Role.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed
func RequireRole(roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}
		if !slices.Contains(roles, id.Role) {
			abortWithCode(c, http.StatusForbidden, shared.CodeForbidden, "Access denied")
			return
		}
		c.Next()
	}
}

// GetIdentity returns the identity stored by Authenticate
func GetIdentity(c *gin.Context) (*identity.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return nil, false
	}
	id, ok := v.(*identity.Identity)
	return id, ok && id != nil
}

// ActorFrom returns the caller as a domain actor
func ActorFrom(c *gin.Context) (identity.Actor, bool) {
	id, ok := GetIdentity(c)
	if !ok {
		return identity.Actor{}, false
	}
	return id.Actor(), true
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return c.Query(AccessTokenQueryParam)
}

func abortUnauthorized(c *gin.Context, message string) {
	abortWithCode(c, http.StatusUnauthorized, shared.CodeUnauthorized, message)
}

func abortWithCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message, c.GetString(RequestIDKey)))
}
