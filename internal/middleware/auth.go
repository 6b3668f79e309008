package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"cryptolearn-backend/internal/models"
	"cryptolearn-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ContextUserKey is the gin context key holding the authenticated *models.User.
const ContextUserKey = "currentUser"

// UserLoader loads the account named by a verified access token.
type UserLoader interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
}

// Authenticator checks bearer access tokens and loads their user.
type Authenticator struct {
	codec *utils.TokenCodec
	users UserLoader
	log   *slog.Logger
}

func NewAuthenticator(codec *utils.TokenCodec, users UserLoader, log *slog.Logger) *Authenticator {
	return &Authenticator{codec: codec, users: users, log: log}
}

// RequireAuth validates the JWT access token from the Authorization header
// and injects the current user into the context
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || strings.TrimSpace(token) == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization format. Use: Bearer <token>")
			c.Abort()
			return
		}
		token = strings.TrimSpace(token)

		if !a.codec.Validate(token) {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		claims, err := a.codec.Decode(token)
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		user, err := a.users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			a.log.Warn("token names an unknown account", "user_id", claims.UserID, "error", err)
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		if !user.Enabled {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Account is disabled")
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// RequireAdmin checks if the authenticated user has the ADMIN role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
			c.Abort()
			return
		}

		if !user.HasRole(models.RoleAdmin) {
			utils.ErrorResponse(c, http.StatusForbidden, "Admin access required")
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentUser returns the user set by RequireAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}
