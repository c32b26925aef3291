package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cravaudio/api/internal/store"
	"github.com/cravaudio/api/internal/webhook"
	"github.com/cravaudio/api/pkg/response"
)

type WebhookHandler struct {
	dispatcher *webhook.Dispatcher
	validator  *validator.Validate
}

func NewWebhookHandler(d *webhook.Dispatcher, v *validator.Validate) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: d,
		validator:  v,
	}
}

type subscribeRequest struct {
	URL        string   `json:"url" validate:"required,url"`
	EventTypes []string `json:"eventTypes" validate:"required,min=1,dive,oneof=track.created track.updated track.ready purchase.completed"`
	Secret     string   `json:"secret" validate:"required,min=16"`
}

// Subscribe handles POST /api/webhooks
func (h *WebhookHandler) Subscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	sub, err := h.dispatcher.Subscribe(c.Context(), req.URL, req.EventTypes, req.Secret)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, sub)
}

// Unsubscribe handles DELETE /api/webhooks/:id
func (h *WebhookHandler) Unsubscribe(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Subscription ID is required", nil)
	}

	if err := h.dispatcher.Unsubscribe(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Subscription not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

// List handles GET /api/webhooks
func (h *WebhookHandler) List(c *fiber.Ctx) error {
	subs, err := h.dispatcher.List(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"subscriptions": subs})
}
