// Package auth resolves the requesting user from a bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const userKey = contextKey("user")

// User is an authenticated caller
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Staff bool   `json:"staff"`
}

// Claims carries the user in a signed token. The subject is the user ID.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Staff bool   `json:"staff,omitempty"`
	jwt.RegisteredClaims
}

// WithUser stores the user in the context
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, if any
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userKey).(*User)
	return user, ok && user != nil
}

// NewToken signs a token for user that expires after ttl
func NewToken(secret string, user User, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := Claims{
		Name:  user.Name,
		Email: user.Email,
		Staff: user.Staff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies an HMAC-signed token and returns its user
func ParseToken(secret, tokenStr string) (*User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return &User{ID: claims.Subject, Name: claims.Name, Email: claims.Email, Staff: claims.Staff}, nil
}

// Middleware places the bearer token's user in the request context.
// Requests without a valid token continue anonymously.
func Middleware(secret string, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "auth").Logger()

	return func(c *gin.Context) {
		tokenStr := extractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenStr == "" {
			c.Next()
			return
		}

		user, err := ParseToken(secret, tokenStr)
		if err != nil {
			log.Debug().Err(err).Msg("Ignoring invalid bearer token")
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), user))
		c.Next()
	}
}

func extractTokenFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
