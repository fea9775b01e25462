package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bazaarhq/storefront-api/internal/middleware"
	"github.com/bazaarhq/storefront-api/internal/service"
	"github.com/bazaarhq/storefront-api/internal/utils"
)

type AuthHandler struct {
	sessions *service.SessionService
}

func NewAuthHandler(sessions *service.SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// bearerToken extracts the session token from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// requestMeta lifts source address and user agent off the request so the
// service layer never has to collect them itself.
func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		SourceAddress: c.ClientIP(),
		ClientAgent:   c.Request.UserAgent(),
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email         string `json:"email" binding:"required,email"`
		Password      string `json:"password" binding:"required"`
		TwoFactorCode string `json:"twoFactorCode"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	result, err := h.sessions.Login(c.Request.Context(), service.Credentials{
		Email:            req.Email,
		Password:         req.Password,
		SecondFactorCode: req.TwoFactorCode,
	}, requestMeta(c))
	if err != nil {
		writeLoginError(c, err)
		return
	}

	if result.Status == service.LoginRequiresTwoFactor {
		utils.Success(c, 200, "Two-factor code required", gin.H{
			"requiresTwoFactor": true,
		})
		return
	}

	utils.Success(c, 200, "Login successful", gin.H{
		"token":         result.Token,
		"administrator": result.Administrator,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), bearerToken(c), requestMeta(c)); err != nil {
		utils.Error(c, 503, "SERVICE_UNAVAILABLE", "Logout failed")
		return
	}
	utils.Success(c, 200, "Logged out", nil)
}

func (h *AuthHandler) Me(c *gin.Context) {
	admin := middleware.GetAdministrator(c)
	if admin == nil {
		utils.Error(c, 401, "UNAUTHENTICATED", "No active session")
		return
	}
	utils.Success(c, 200, "Current administrator", admin)
}

// writeLoginError maps service errors onto the response envelope. Credential
// and directory rejections share one generic message so the endpoint can't
// be used to enumerate accounts.
func writeLoginError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrInvalidCredentials), errors.Is(err, utils.ErrUnauthorized):
		utils.Error(c, 401, "AUTHENTICATION_FAILED", "Authentication failed")
	case errors.Is(err, utils.ErrInvalidTwoFactorCode):
		utils.Error(c, 401, "INVALID_TWO_FACTOR_CODE", "Invalid two-factor code")
	case errors.Is(err, utils.ErrTooManyAttempts):
		utils.Error(c, 429, "TOO_MANY_ATTEMPTS", "Too many failed attempts")
	default:
		utils.Error(c, 503, "SERVICE_UNAVAILABLE", "Authentication service unavailable")
	}
}
