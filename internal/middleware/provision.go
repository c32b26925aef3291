package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/cravaudio/api/internal/model"
	"github.com/cravaudio/api/pkg/response"
)

// UserProvisioner is implemented by the user service.
type UserProvisioner interface {
	EnsureUser(ctx context.Context, userID, email string) (*model.User, error)
}

// ProvisionUser creates the user row and signup grant the first time an
// authenticated identity is seen. Must run after Authenticate.
func ProvisionUser(users UserProvisioner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity")
		}

		if _, err := users.EnsureUser(c.Context(), userID, GetUserEmail(c)); err != nil {
			return response.ServiceError(c, "Failed to provision user")
		}
		return c.Next()
	}
}
