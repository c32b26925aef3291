package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cravaudio/api/internal/middleware"
	"github.com/cravaudio/api/internal/service"
	"github.com/cravaudio/api/pkg/response"
)

type CreditHandler struct {
	service   *service.CreditService
	validator *validator.Validate
}

func NewCreditHandler(svc *service.CreditService, v *validator.Validate) *CreditHandler {
	return &CreditHandler{
		service:   svc,
		validator: v,
	}
}

// Balance handles GET /api/credits
func (h *CreditHandler) Balance(c *fiber.Ctx) error {
	balance, err := h.service.Balance(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, fiber.Map{"balance": balance})
}

// History handles GET /api/credits/history
func (h *CreditHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	entries, err := h.service.History(c.Context(), middleware.GetUserID(c), limit)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, fiber.Map{"transactions": entries})
}

// Bundles handles GET /api/credits/bundles
func (h *CreditHandler) Bundles(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"bundles": h.service.Bundles()})
}

// Purchase handles POST /api/credits/purchase
func (h *CreditHandler) Purchase(c *fiber.Ctx) error {
	var req service.PurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.CompletePurchase(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}
