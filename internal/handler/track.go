package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cravaudio/api/internal/middleware"
	"github.com/cravaudio/api/internal/service"
	"github.com/cravaudio/api/pkg/response"
)

type TrackHandler struct {
	service *service.TrackService
}

func NewTrackHandler(svc *service.TrackService) *TrackHandler {
	return &TrackHandler{service: svc}
}

// Generate handles POST /api/tracks
func (h *TrackHandler) Generate(c *fiber.Ctx) error {
	var req service.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	result, err := h.service.Generate(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, result)
}

// List handles GET /api/tracks
func (h *TrackHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	tracks, err := h.service.List(c.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, fiber.Map{"tracks": tracks})
}

// Get handles GET /api/tracks/:id
func (h *TrackHandler) Get(c *fiber.Ctx) error {
	trackID := c.Params("id")
	if trackID == "" {
		return response.ValidationError(c, "Track ID is required", nil)
	}

	track, err := h.service.Get(c.Context(), middleware.GetUserID(c), trackID)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, track)
}
