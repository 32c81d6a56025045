package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	UserIDKey   = "user_id"
	UserNameKey = "user_name"
)

type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

type JWTConfig struct {
	SigningKey []byte
}

// JWTMiddleware validates a bearer token signed with the shared HS256 secret
// and stores the authenticated user on the echo context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return cfg.SigningKey, nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(UserIDKey, claims.Subject)
			c.Set(UserNameKey, claims.Username)
			return next(c)
		}
	}
}

// DevAuthMiddleware grants every request a fixed development identity.
// Never enabled outside ENV=development.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(UserIDKey, "dev-user")
			c.Set(UserNameKey, "dev")
			return next(c)
		}
	}
}

// UserID returns the authenticated user id from the echo context.
func UserID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}
