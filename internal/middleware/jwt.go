package middleware // reusable echo middleware: auth, roles, rate limiting, response cache

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// JWTAuth returns an Echo middleware that validates an HS256 Bearer token
// and stores its subject and role claims in the context under
// ContextUserID and ContextRole.  Tokens are issued by the external auth
// service that shares secret with this API.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Only HMAC-signed tokens are accepted; anything else is rejected
			// before the signature is checked.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			sub := subject(claims["sub"])
			if sub == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has no subject"})
			}

			c.Set(ContextUserID, sub)
			if role, ok := claims["role"].(string); ok {
				c.Set(ContextRole, role)
			}
			return next(c)
		}
	}
}

// subject normalises the "sub" claim.  Some issuers encode numeric user
// ids as JSON numbers, which decode to float64.
func subject(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// UserID returns the authenticated user id stored by JWTAuth, or "".
func UserID(c echo.Context) string {
	if s, ok := c.Get(ContextUserID).(string); ok {
		return s
	}
	return ""
}
