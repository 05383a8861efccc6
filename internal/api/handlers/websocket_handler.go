package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/query"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

type WebSocketHandler struct {
	orchestrator   *query.Orchestrator
	defaultResults int
}

func NewWebSocketHandler(orchestrator *query.Orchestrator, defaultResults int) *WebSocketHandler {
	if defaultResults <= 0 {
		defaultResults = 3
	}
	return &WebSocketHandler{
		orchestrator:   orchestrator,
		defaultResults: defaultResults,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type          string `json:"type"`
			Question      string `json:"question"`
			UseSimplifier *bool  `json:"use_simplifier"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "question" {
			continue
		}

		if msg.Question == "" {
			h.sendError(c, "Question is required")
			continue
		}

		useSimplifier := true
		if msg.UseSimplifier != nil {
			useSimplifier = *msg.UseSimplifier
		}

		err = h.streamAnswer(c, msg.Question, useSimplifier)
		if err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "Failed to answer question")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, question string, useSimplifier bool) error {
	ctx := context.Background()

	h.sendChunk(c, "status", "Looking through your documents...")

	answer, err := h.orchestrator.Answer(ctx, question, useSimplifier, h.defaultResults)
	if err != nil {
		return err
	}

	words := splitIntoWords(answer.Text)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		err := h.sendChunk(c, "chunk", chunk)
		if err != nil {
			return err
		}
	}

	return h.sendComplete(c, answer)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	msg := map[string]interface{}{
		"type":    msgType,
		"content": content,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, answer *query.Answer) error {
	msg := map[string]interface{}{
		"type":        "complete",
		"readability": answer.Readability,
		"sources":     answer.Sources,
		"simplified":  answer.Simplified,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":   "error",
		"detail": errorMsg,
	}

	c.WriteJSON(msg)
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
