package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/ingestion"
	"github.com/AkhilKas/patient-comm-assistant/internal/metrics"
	"github.com/AkhilKas/patient-comm-assistant/internal/model"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
}

func NewDocumentHandler(processor *ingestion.Processor) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
	}
}

// UploadDocument accepts a multipart form with a single "file" field and
// indexes the document's chunks.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "A file upload named 'file' is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "Could not read uploaded file",
		})
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "Could not read uploaded file",
		})
	}

	result, err := h.processor.ProcessDocument(c.Context(), fileHeader.Filename, content)
	if err != nil {
		switch {
		case errors.Is(err, ingestion.ErrEmptyDocument):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"detail": "Document contains no extractable text",
			})
		case errors.Is(err, ingestion.ErrUnsupportedType):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"detail": "Unsupported file type. Upload .txt, .md, or .html",
			})
		case errors.Is(err, model.ErrUnavailable):
			logger.Error("Embedding service unavailable", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"detail": "Embedding service is temporarily unavailable",
			})
		default:
			logger.Error("Failed to process document",
				zap.String("filename", fileHeader.Filename),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"detail": "Failed to process document",
			})
		}
	}

	metrics.DocumentsIngested.Inc()
	metrics.ChunksIndexed.Set(float64(result.TotalChunks))

	logger.Info("Document ingested",
		zap.String("filename", result.Filename),
		zap.Int("chunks_added", result.ChunksAdded),
	)

	return c.JSON(fiber.Map{
		"filename":       result.Filename,
		"chunks_added":   result.ChunksAdded,
		"total_chunks":   result.TotalChunks,
		"sections_found": result.SectionsFound,
	})
}
