package middlewares

import (
	"github.com/dsentr/dsentr/internal/auth"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// PushSignatureMiddleware rejects push requests that do not carry a valid
// platform signature. The body is verified byte for byte, so the middleware
// must run before anything that consumes it.
func PushSignatureMiddleware(verifier *auth.PlatformSignatureVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		signatureHeader := c.Get("X-Platform-Signature")
		timestampHeader := c.Get("X-Platform-Timestamp")
		if signatureHeader == "" || timestampHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing push signature headers",
			})
		}

		err := verifier.VerifyRequest(c.Method(), c.Path(), signatureHeader, timestampHeader, c.Body())
		if err != nil {
			log.Warn().
				Err(err).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Msg("Rejected platform push")

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid push signature",
			})
		}

		return c.Next()
	}
}
