package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cravaudio/api/internal/ratelimit"
	"github.com/cravaudio/api/pkg/response"
)

// RateLimit applies the fixed-window request limit per identity. The
// identity is the authenticated user when present, the client IP
// otherwise, so the limiter also covers unauthenticated probing.
func RateLimit(limiter *ratelimit.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := GetUserID(c)
		if identity == "" {
			identity = c.IP()
		}

		result := limiter.CheckRequest(identity)

		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return response.RateLimited(c, "Too many requests, slow down")
		}

		return c.Next()
	}
}
