package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/pkg/circuitbreaker"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
	"github.com/AkhilKas/patient-comm-assistant/pkg/retry"
)

// ErrUnavailable marks failures of the embedding or generation capability.
// Callers decide whether to retry; the client itself retries transient
// failures a bounded number of times before giving up.
var ErrUnavailable = errors.New("model unavailable")

type Client struct {
	client          *openai.Client
	generationModel string
	embeddingModel  string
	temperature     float32
	maxTokens       int
	timeout         time.Duration
	genSlots        chan struct{}
	cb              *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
}

func NewClient(apiKey, generationModel, embeddingModel string, temperature float32, maxTokens, timeoutSec, maxConcurrent int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("model", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	if timeoutSec <= 0 {
		timeoutSec = 60
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	logger.Info("Model client initialized",
		zap.String("generation_model", generationModel),
		zap.String("embedding_model", embeddingModel),
		zap.Int("max_concurrent_generations", maxConcurrent),
	)

	return &Client{
		client:          client,
		generationModel: generationModel,
		embeddingModel:  embeddingModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		timeout:         time.Duration(timeoutSec) * time.Second,
		genSlots:        make(chan struct{}, maxConcurrent),
		cb:              cb,
		retryConfig:     retryConfig,
	}
}

// Generate produces a completion for the given prompts. Concurrent calls are
// bounded by the configured slot count; the slot is released on every exit
// path, including timeout.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case c.genSlots <- struct{}{}:
		defer func() { <-c.genSlots }()
	case <-ctx.Done():
		return "", fmt.Errorf("%w: waiting for generation slot: %v", ErrUnavailable, ctx.Err())
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: userPrompt,
		},
	}

	var content string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.generationModel,
					Messages:    messages,
					Temperature: c.temperature,
					MaxTokens:   c.maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			logger.Debug("Completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			content = resp.Choices[0].Message.Content
			return nil
		})
	})

	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return content, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts in batches of 100 to keep request sizes bounded
// during ingestion of large documents.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	embeddings := make([][]float32, 0, len(texts))

	batchSize := 100
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]

		var batchEmbeddings [][]float32

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := c.client.CreateEmbeddings(
					ctx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(c.embeddingModel),
					},
				)

				if err != nil {
					return fmt.Errorf("failed to generate embeddings: %w", err)
				}

				if len(resp.Data) != len(batch) {
					return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(resp.Data), len(batch))
				}

				batchEmbeddings = make([][]float32, 0, len(batch))
				for _, data := range resp.Data {
					embedding := make([]float32, len(data.Embedding))
					copy(embedding, data.Embedding)
					batchEmbeddings = append(batchEmbeddings, embedding)
				}

				return nil
			})
		})

		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		embeddings = append(embeddings, batchEmbeddings...)
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}
