package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"pricetracker/logger"
)

// Claims carried by admin tokens.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IssueToken signs an admin token for username valid for ttl.
func IssueToken(secret []byte, username string, ttl time.Duration, now time.Time) (string, error) {
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// JWTAdmin rejects requests without a valid "Bearer" admin token and stores
// the username in c.Locals("username").
func JWTAdmin(secret []byte, log *logger.Log) fiber.Handler {
	entry := log.WithComponent("auth")
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "bearer token required",
			})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			entry.WithError(err).Warn("rejected admin token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}
		if claims.Username == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "token has no username",
			})
		}

		c.Locals("username", claims.Username)
		return c.Next()
	}
}
