// Package auth provides authentication primitives for the portal: session
// token (JWT) generation and validation for the admin UI, OAuth access token
// claims for the client API, and bcrypt password hashing.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims represents the portal session token claims
type SessionClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	// TwoFactorVerified is set after a successful TOTP verification;
	// accounts with an enrolled TOTP secret need it for admin routes.
	TwoFactorVerified bool `json:"two_factor_verified"`
	jwt.RegisteredClaims
}

// GenerateSessionToken generates a new session token for a user
func GenerateSessionToken(userID, role string, twoFactorVerified bool, secret, issuer string, expiration time.Duration) (string, error) {
	claims := &SessionClaims{
		UserID:            userID,
		Role:              role,
		TwoFactorVerified: twoFactorVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateSessionToken validates a session token and returns the claims
func ValidateSessionToken(tokenString, secret string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
