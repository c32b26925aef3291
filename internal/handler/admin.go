package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cravaudio/api/internal/model"
	"github.com/cravaudio/api/internal/service"
	"github.com/cravaudio/api/internal/store"
	"github.com/cravaudio/api/pkg/response"
)

type AdminHandler struct {
	service   *service.AdminService
	validator *validator.Validate
}

func NewAdminHandler(svc *service.AdminService, v *validator.Validate) *AdminHandler {
	return &AdminHandler{
		service:   svc,
		validator: v,
	}
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

// ListTracks handles GET /api/admin/tracks
func (h *AdminHandler) ListTracks(c *fiber.Ctx) error {
	filters := store.TrackFilters{
		Status:   model.TrackStatus(c.Query("status")),
		Provider: c.Query("provider"),
		UserID:   c.Query("userId"),
		Start:    parseDate(c.Query("startDate")),
		End:      parseDate(c.Query("endDate")),
		Limit:    c.QueryInt("limit", 100),
		Offset:   c.QueryInt("offset", 0),
	}

	tracks, err := h.service.ListTracks(c.Context(), filters)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, fiber.Map{"tracks": tracks})
}

// RetryTrack handles POST /api/admin/tracks/:id/retry
func (h *AdminHandler) RetryTrack(c *fiber.Ctx) error {
	trackID := c.Params("id")
	if trackID == "" {
		return response.ValidationError(c, "Track ID is required", nil)
	}

	job, err := h.service.RetryTrack(c.Context(), trackID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Track not found")
		}
		if job != nil {
			// Re-submission failed; the track is back in error state.
			return response.Error(c, fiber.StatusBadGateway, response.CodeJobFailed, err.Error(), nil)
		}
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.OK(c, job)
}

type failTrackRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// FailTrack handles POST /api/admin/tracks/:id/fail
func (h *AdminHandler) FailTrack(c *fiber.Ctx) error {
	trackID := c.Params("id")
	if trackID == "" {
		return response.ValidationError(c, "Track ID is required", nil)
	}

	var req failTrackRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.service.FailTrack(c.Context(), trackID, req.Reason); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Track not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

// DisableTrack handles POST /api/admin/tracks/:id/disable
func (h *AdminHandler) DisableTrack(c *fiber.Ctx) error {
	trackID := c.Params("id")
	if trackID == "" {
		return response.ValidationError(c, "Track ID is required", nil)
	}

	if err := h.service.DisableTrack(c.Context(), trackID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Track not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

type adjustCreditsRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,max=200"`
}

// AdjustCredits handles POST /api/admin/credits
func (h *AdminHandler) AdjustCredits(c *fiber.Ctx) error {
	var req adjustCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	balance, err := h.service.AdjustCredits(c.Context(), req.UserID, req.Delta, req.Reason)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "User not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"balance": balance})
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.GetStats(c.Context())
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, stats)
}
