package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/metrics"
	"github.com/AkhilKas/patient-comm-assistant/internal/vector"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

type AdminHandler struct {
	index *vector.Index
}

func NewAdminHandler(index *vector.Index) *AdminHandler {
	return &AdminHandler{
		index: index,
	}
}

func (h *AdminHandler) GetStats(c *fiber.Ctx) error {
	stats := h.index.Stats()

	return c.JSON(fiber.Map{
		"total_chunks": stats.TotalChunks,
		"sections":     stats.Sections,
	})
}

func (h *AdminHandler) ClearIndex(c *fiber.Ctx) error {
	if err := h.index.Clear(c.Context()); err != nil {
		logger.Error("Failed to clear index", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Failed to clear index",
		})
	}

	metrics.ChunksIndexed.Set(0)
	logger.Info("Index cleared")

	return c.JSON(fiber.Map{
		"status":           "cleared",
		"chunks_remaining": 0,
	})
}

func (h *AdminHandler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":       "healthy",
		"total_chunks": h.index.Stats().TotalChunks,
	})
}
