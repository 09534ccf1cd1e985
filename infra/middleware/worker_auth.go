package middleware

import (
	"fmt"
	"strings"
	"time"

	"travel_server/pkg/apperr"
	"travel_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDLocal is the Locals key holding the authenticated subject
const UserIDLocal = "user_id"

// JWTAuth validates an HS256 bearer token and stores its "sub" claim.
// An empty secret disables authentication.
func JWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		tokenString := bearerToken(c.Get("Authorization"))
		if tokenString == "" {
			return apperr.Unauthorized("missing authorization")
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unsupported signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(time.Minute),
		)
		if err != nil || !token.Valid {
			logger.WithError(err).WithField("path", c.Path()).Warn("JWT validation failed")
			return apperr.InvalidToken("invalid token")
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return apperr.InvalidToken("missing subject in token")
		}

		c.Locals(UserIDLocal, sub)
		c.SetUserContext(logger.ContextWithUserID(c.UserContext(), sub))
		return c.Next()
	}
}

// AuthenticatedUser returns the token subject, if any
func AuthenticatedUser(c *fiber.Ctx) (string, bool) {
	sub, ok := c.Locals(UserIDLocal).(string)
	return sub, ok && sub != ""
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
