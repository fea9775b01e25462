package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bazaarhq/storefront-api/internal/models"
	"github.com/bazaarhq/storefront-api/internal/service"
	"github.com/bazaarhq/storefront-api/internal/utils"
)

// SessionMiddleware gates privileged routes on the session service. It holds
// no state of its own; both checks are pure predicates over the service.
type SessionMiddleware struct {
	sessions *service.SessionService
}

// NewSessionMiddleware constructs a SessionMiddleware.
func NewSessionMiddleware(sessions *service.SessionService) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// RequireAuthenticated rejects requests without a valid, unexpired admin
// session (401) and stores the validated administrator in the context.
func (m *SessionMiddleware) RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			utils.Error(c, 401, "UNAUTHENTICATED", "Missing authorization header")
			c.Abort()
			return
		}

		sess, admin, err := m.sessions.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, utils.ErrSessionExpired) {
				utils.Error(c, 401, "SESSION_EXPIRED", "Session has expired")
			} else {
				utils.Error(c, 401, "UNAUTHENTICATED", "Invalid session")
			}
			c.Abort()
			return
		}

		c.Set("administrator", admin)
		c.Set("session_id", sess.ID)
		c.Set("session_token", token)
		c.Next()
	}
}

// RequirePermission rejects authenticated requests lacking the permission
// token (403). Must be registered after RequireAuthenticated.
func (m *SessionMiddleware) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetString("session_token")
		if token == "" {
			token = bearerToken(c)
		}
		if !m.sessions.HasPermission(c.Request.Context(), token, permission) {
			utils.Error(c, 403, "FORBIDDEN", "Missing required permission")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetAdministrator returns the authenticated administrator from context.
func GetAdministrator(c *gin.Context) *models.Administrator {
	admin, _ := c.Get("administrator")
	if admin == nil {
		return nil
	}
	return admin.(*models.Administrator)
}

// bearerToken extracts the session token from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
