package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskflow/internal/config"
	"taskflow/internal/models"
	"taskflow/internal/security"
	"taskflow/internal/service"
)

const (
	identityKey = "identity"
	tokenKey    = "session_token"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (models.Identity, error)
}

// Auth resolves the session from a bearer token or the signed session
// cookie and stores the caller's identity on the context.
func Auth(cfg config.SecurityConfig, resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c, cfg)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_session"})
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}

		c.Set(tokenKey, token)
		c.Set(identityKey, identity)

		c.Next()
	}
}

// SessionToken extracts the raw session token. A bearer header wins over
// the cookie; a cookie that fails signature checks yields nothing.
func SessionToken(c *gin.Context, cfg config.SecurityConfig) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	cookie, err := c.Cookie(cfg.CookieName)
	if err != nil || cookie == "" {
		return ""
	}
	token, err := security.ParseSessionCookie(cookie, cfg.CookieSecret)
	if err != nil {
		return ""
	}
	return token
}

func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

func TokenFrom(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// SetIdentity is used by tests that mount handlers without Auth.
func SetIdentity(c *gin.Context, identity models.Identity) {
	c.Set(identityKey, identity)
}
