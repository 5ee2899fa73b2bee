package middlewares

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const userIDLocal = "user_id"

// EditorAuthMiddleware authenticates editor requests with an HS256 bearer
// token issued by the platform. The token's workspace claims must cover the
// workspace in the path.
func EditorAuthMiddleware(secret string) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing bearer token",
			})
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims := jwt.MapClaims{}

		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("token algorithm %s does not match as expected", token.Method.Alg())
			}

			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			log.Debug().Err(err).Str("path", c.Path()).Msg("Rejected editor token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		workspaceID := c.Params("workspaceID")
		if workspaceID != "" && !claimsCoverWorkspace(claims, workspaceID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Token does not grant access to this workspace",
			})
		}

		if sub, ok := claims["sub"].(string); ok {
			c.Locals(userIDLocal, sub)
		}

		return c.Next()
	}
}

// UserID returns the authenticated editor user id, if any.
func UserID(c fiber.Ctx) string {
	userID, _ := c.Locals(userIDLocal).(string)
	return userID
}

func claimsCoverWorkspace(claims jwt.MapClaims, workspaceID string) bool {
	workspaces, ok := claims["workspaces"].([]any)
	if !ok {
		return false
	}

	for _, workspace := range workspaces {
		if id, ok := workspace.(string); ok && id == workspaceID {
			return true
		}
	}

	return false
}
