package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/api/middleware"
	"github.com/CedricCorazza/vpn-user-portal/internal/auth"
	"github.com/CedricCorazza/vpn-user-portal/internal/config"
	"github.com/CedricCorazza/vpn-user-portal/internal/service"
	"github.com/CedricCorazza/vpn-user-portal/internal/validation"
)

// AuthHandler handles portal session authentication: login, logout and the
// two-factor challenge.
type AuthHandler struct {
	userService *service.UserService
	cfg         *config.Config
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *service.UserService, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		cfg:         cfg,
		logger:      logger,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates a user and starts a session. An enrolled user gets a
// session token that still needs the two-factor challenge before it is good
// for anything beyond the challenge itself.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Authenticate(req.UserID, req.Password)
	if err != nil {
		h.logger.Warn("login failed", zap.String("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	now := time.Now().UTC()
	if _, err := h.userService.UpdateSessionExpiry(user.UserID, now); err != nil {
		h.logger.Error("session expiry update failed", zap.String("user_id", user.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	role := "user"
	if h.cfg.Portal.IsAdmin(user.UserID) {
		role = "admin"
	}

	enrolled, err := h.userService.HasTotpSecret(user.UserID)
	if err != nil {
		h.logger.Error("enrollment lookup failed", zap.String("user_id", user.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	token, err := auth.GenerateSessionToken(user.UserID, role, !enrolled, h.cfg.JWT.Secret, h.cfg.JWT.Issuer, h.cfg.JWT.Expiration)
	if err != nil {
		h.logger.Error("token generation failed", zap.String("user_id", user.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.logger.Info("user logged in", zap.String("user_id", user.UserID))

	c.JSON(http.StatusOK, gin.H{
		"token":               token,
		"two_factor_required": enrolled,
	})
}

// VerifyTotp completes the two-factor challenge of a pending session and
// issues the verified session token.
func (h *AuthHandler) VerifyTotp(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	totpKey, err := validation.TotpKey(c.PostForm("totp_key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.VerifyTotpKey(userID, totpKey, time.Now().UTC()); err != nil {
		h.logger.Warn("two-factor verification failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "two-factor verification failed"})
		return
	}

	role := c.GetString(middleware.ContextRole)
	token, err := auth.GenerateSessionToken(userID, role, true, h.cfg.JWT.Secret, h.cfg.JWT.Issuer, h.cfg.JWT.Expiration)
	if err != nil {
		h.logger.Error("token generation failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// EnrollTotp enrolls the current user for two-factor authentication. The
// submitted code must match the submitted secret before anything sticks.
func (h *AuthHandler) EnrollTotp(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	otpSecret := c.PostForm("otp_secret")
	if otpSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "otp_secret required"})
		return
	}
	totpKey, err := validation.TotpKey(c.PostForm("totp_key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.RegisterTotpSecret(userID, otpSecret, totpKey, time.Now().UTC()); err != nil {
		h.logger.Warn("two-factor enrollment failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrolled": true})
}

// GetCurrentUser returns the identity behind the session token
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	enrolled, err := h.userService.HasTotpSecret(userID)
	if err != nil {
		h.logger.Error("enrollment lookup failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":             userID,
		"role":                c.GetString(middleware.ContextRole),
		"two_factor_enrolled": enrolled,
	})
}

// Logout ends the session. With a logout URL configured (SAML and friends
// need one) the client is pointed there, carrying the referrer in the
// configured return parameter.
func (h *AuthHandler) Logout(c *gin.Context) {
	if h.cfg.Portal.LogoutURL == "" {
		c.JSON(http.StatusOK, gin.H{"logout_url": c.Request.Referer()})
		return
	}

	query := url.Values{}
	query.Set(h.cfg.Portal.ReturnParameter, c.Request.Referer())

	c.JSON(http.StatusOK, gin.H{
		"logout_url": h.cfg.Portal.LogoutURL + "?" + query.Encode(),
	})
}
