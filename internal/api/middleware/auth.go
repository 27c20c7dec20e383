package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CedricCorazza/vpn-user-portal/internal/auth"
	"github.com/CedricCorazza/vpn-user-portal/internal/config"
)

// Context keys set by the authentication middlewares.
const (
	ContextUserID            = "user_id"
	ContextRole              = "role"
	ContextTwoFactorVerified = "two_factor_verified"
	ContextTokenInfo         = "token_info"
)

// SessionAuthMiddleware validates portal session tokens and sets the user
// context
func SessionAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		claims, err := auth.ValidateSessionToken(token, cfg.JWT.Secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextTwoFactorVerified, claims.TwoFactorVerified)

		c.Next()
	}
}

// RequireAdmin rejects sessions without the admin role or with a pending
// two-factor challenge.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != "admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			c.Abort()
			return
		}
		if !c.GetBool(ContextTwoFactorVerified) {
			c.JSON(http.StatusForbidden, gin.H{"error": "two-factor verification required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireTwoFactorVerified rejects sessions with a pending two-factor
// challenge.
func RequireTwoFactorVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextTwoFactorVerified) {
			c.JSON(http.StatusForbidden, gin.H{"error": "two-factor verification required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// NodeAuthMiddleware validates the HTTP Basic service credential the VPN
// server nodes authenticate with.
func NodeAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok || !credentialMatch(username, password, cfg.NodeAPI.Username, cfg.NodeAPI.Password) {
			c.Header("WWW-Authenticate", `Basic realm="vpn-user-portal"`)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// TokenAuthMiddleware validates OAuth access tokens and sets the token info
// context
func TokenAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		tokenInfo, err := auth.ValidateAccessToken(token, cfg.JWT.Secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextTokenInfo, tokenInfo)

		c.Next()
	}
}

// TokenInfo retrieves the validated access token info from the request
// context.
func TokenInfo(c *gin.Context) (*auth.AccessTokenInfo, bool) {
	value, exists := c.Get(ContextTokenInfo)
	if !exists {
		return nil, false
	}
	tokenInfo, ok := value.(*auth.AccessTokenInfo)
	return tokenInfo, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func credentialMatch(username, password, wantUsername, wantPassword string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(wantUsername)) == 1
	passwordMatch := subtle.ConstantTimeCompare([]byte(password), []byte(wantPassword)) == 1
	return usernameMatch && passwordMatch
}
