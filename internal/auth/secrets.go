package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

// RequireSharedSecret guards service-to-service routes with a header-borne
// shared secret. The internal API uses X-Internal-Secret, the agent
// trigger uses X-Agent-Key; they are distinct credentials.
func RequireSharedSecret(header, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get(header)
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return apperrors.NewUnauthorized("invalid " + header)
		}
		return c.Next()
	}
}

// Header names for the two shared-secret gates.
const (
	HeaderInternalSecret = "X-Internal-Secret"
	HeaderAgentKey       = "X-Agent-Key"
)
