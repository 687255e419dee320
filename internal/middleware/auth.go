package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apierrors "github.com/taskhub/backend/internal/errors"
	"github.com/taskhub/backend/internal/models"
	"github.com/taskhub/backend/internal/services"
)

const contextKeyPrincipal = "principal"

// RequireAuth validates the bearer token and stores the authenticated user
// in the request context.
func RequireAuth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		user, err := authService.Authenticate(token)
		if err != nil {
			apierrors.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		SetPrincipal(c, user)
		c.Next()
	}
}

// OptionalAuth resolves the bearer token when present but lets anonymous
// requests through. Used by the user-creation endpoint for the bootstrap path.
func OptionalAuth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if user, err := authService.Authenticate(token); err == nil {
				SetPrincipal(c, user)
			}
		}
		c.Next()
	}
}

// RequireAdmin rejects requests from non-admin principals. Must run after
// RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetPrincipal(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}
		if !user.IsAdmin() {
			apierrors.Forbidden(c, "Admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// SetPrincipal stores the authenticated user in the request context. Exposed
// so handler tests can build authenticated contexts without the middleware.
func SetPrincipal(c *gin.Context, user *models.User) {
	c.Set(contextKeyPrincipal, user)
}

// GetPrincipal retrieves the authenticated user from the request context.
func GetPrincipal(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(contextKeyPrincipal)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
