package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/metrics"
	"github.com/AkhilKas/patient-comm-assistant/internal/model"
	"github.com/AkhilKas/patient-comm-assistant/internal/readability"
	"github.com/AkhilKas/patient-comm-assistant/internal/simplify"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

// TextHandler serves the standalone simplification and scoring endpoints,
// which work on caller-provided text without touching the index.
type TextHandler struct {
	engine *simplify.Engine
	scorer *readability.Scorer
}

func NewTextHandler(engine *simplify.Engine, scorer *readability.Scorer) *TextHandler {
	return &TextHandler{
		engine: engine,
		scorer: scorer,
	}
}

func (h *TextHandler) HandleSimplify(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "Invalid request body",
		})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "Text is required",
		})
	}

	result, err := h.engine.Simplify(c.Context(), req.Text)
	if err != nil {
		if errors.Is(err, model.ErrUnavailable) {
			logger.Error("Model unavailable while simplifying", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"detail": "Language model is temporarily unavailable",
			})
		}
		logger.Error("Failed to simplify text", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Failed to simplify text",
		})
	}

	metrics.SimplifyAttempts.Observe(float64(result.Attempts))
	metrics.SimplifyTargetMet.WithLabelValues(strconv.FormatBool(result.MetTarget)).Inc()

	return c.JSON(fiber.Map{
		"original":           result.Original,
		"simplified":         result.Simplified,
		"readability_before": result.Before,
		"readability_after":  result.After,
		"improvement": fiber.Map{
			"grade_level_reduction":   result.GradeLevelReduction,
			"flesch_ease_improvement": result.FleschEaseImprovement,
			"met_target":              result.MetTarget,
		},
	})
}

func (h *TextHandler) HandleReadability(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "Invalid request body",
		})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "Text is required",
		})
	}

	m := h.scorer.Score(req.Text)

	return c.JSON(fiber.Map{
		"readability":         m,
		"is_patient_friendly": m.IsPatientFriendly,
		"recommendation":      h.scorer.Recommendation(m),
	})
}
