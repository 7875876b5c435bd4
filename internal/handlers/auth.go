package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskflow/internal/middleware"
	"taskflow/internal/security"
	"taskflow/internal/service"
)

type loginRequest struct {
	// Username accepts either the username or the email address.
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	result, err := h.svc.Auth.Login(c.Request.Context(), service.LoginInput{
		Identifier: identifier,
		Password:   req.Password,
		Client: service.ClientMeta{
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		},
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	if h.cfg.Security.CookieSecret != "" {
		cookie, err := security.SignSessionCookie(
			h.cfg.Security.CookieSecret,
			result.Token,
			result.Session.CreatedAt,
			result.Session.ExpiresAt,
		)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(
			h.cfg.Security.CookieName,
			cookie,
			int(time.Until(result.Session.ExpiresAt).Seconds()),
			"/",
			"",
			h.cfg.Security.CookieSecure,
			true,
		)
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.Session.ExpiresAt,
		User:      newUserResponse(result.User),
	})
}

// Logout never fails for a missing or already revoked session.
func (h HandlerSet) Logout(c *gin.Context) {
	token := middleware.SessionToken(c, h.cfg.Security)
	if err := h.svc.Auth.Logout(c.Request.Context(), token); err != nil {
		h.writeError(c, err)
		return
	}

	c.SetCookie(h.cfg.Security.CookieName, "", -1, "/", "", h.cfg.Security.CookieSecure, true)
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Me(c *gin.Context) {
	user, err := h.svc.Auth.Profile(c.Request.Context(), caller(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

type checkResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
	Username      string `json:"username,omitempty"`
	Role          string `json:"role,omitempty"`
}

func (h HandlerSet) Check(c *gin.Context) {
	token := middleware.SessionToken(c, h.cfg.Security)
	if token == "" {
		c.JSON(http.StatusOK, checkResponse{})
		return
	}
	identity, err := h.resolver.Resolve(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusOK, checkResponse{})
		return
	}
	c.JSON(http.StatusOK, checkResponse{
		Authenticated: true,
		UserID:        identity.UserID,
		Username:      identity.Username,
		Role:          string(identity.Role),
	})
}
