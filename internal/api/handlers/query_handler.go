package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/metrics"
	"github.com/AkhilKas/patient-comm-assistant/internal/model"
	"github.com/AkhilKas/patient-comm-assistant/internal/query"
	"github.com/AkhilKas/patient-comm-assistant/internal/vector"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

type QueryHandler struct {
	orchestrator   *query.Orchestrator
	index          *vector.Index
	defaultResults int
}

func NewQueryHandler(orchestrator *query.Orchestrator, index *vector.Index, defaultResults int) *QueryHandler {
	if defaultResults <= 0 {
		defaultResults = 3
	}
	return &QueryHandler{
		orchestrator:   orchestrator,
		index:          index,
		defaultResults: defaultResults,
	}
}

// HandleAsk answers a patient question grounded in the indexed documents.
func (h *QueryHandler) HandleAsk(c *fiber.Ctx) error {
	var req struct {
		Question      string `json:"question"`
		UseSimplifier *bool  `json:"use_simplifier"`
		NResults      int    `json:"n_results"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "Question is required",
		})
	}

	if h.index.Stats().TotalChunks == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "No documents indexed. Upload a document first.",
		})
	}

	useSimplifier := true
	if req.UseSimplifier != nil {
		useSimplifier = *req.UseSimplifier
	}

	nResults := req.NResults
	if nResults <= 0 {
		nResults = h.defaultResults
	}

	start := time.Now()
	answer, err := h.orchestrator.Answer(c.Context(), req.Question, useSimplifier, nResults)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		if errors.Is(err, model.ErrUnavailable) {
			logger.Error("Model unavailable while answering", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"detail": "Language model is temporarily unavailable",
			})
		}
		logger.Error("Failed to answer question", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Failed to answer question",
		})
	}

	metrics.QueriesTotal.WithLabelValues("success").Inc()
	metrics.QueryDuration.WithLabelValues(strconv.FormatBool(answer.Simplified)).Observe(time.Since(start).Seconds())
	metrics.AnswerGradeLevel.Observe(answer.Readability.AvgGradeLevel)

	return c.JSON(fiber.Map{
		"answer":      answer.Text,
		"readability": answer.Readability,
		"sources":     answer.Sources,
		"simplified":  answer.Simplified,
	})
}
