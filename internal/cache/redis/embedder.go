package redis

import (
	"context"

	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/metrics"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

// Embedder is the capability being decorated.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CachedEmbedder serves embeddings from the cache and falls through to the
// inner embedder on a miss. Cache failures degrade to the inner call; they
// never fail the operation.
type CachedEmbedder struct {
	inner Embedder
	cache *Client
}

func NewCachedEmbedder(inner Embedder, cache *Client) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if embedding, ok, err := e.cache.GetEmbedding(ctx, text); err == nil && ok {
		metrics.CacheHits.Inc()
		return embedding, nil
	} else if err != nil {
		logger.Warn("Embedding cache lookup failed", zap.Error(err))
	}

	metrics.CacheMisses.Inc()

	embedding, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetEmbedding(ctx, text, embedding); err != nil {
		logger.Warn("Failed to cache embedding", zap.Error(err))
	}

	return embedding, nil
}

func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	var missingTexts []string
	var missingIdx []int

	for i, text := range texts {
		if embedding, ok, err := e.cache.GetEmbedding(ctx, text); err == nil && ok {
			metrics.CacheHits.Inc()
			embeddings[i] = embedding
			continue
		}
		metrics.CacheMisses.Inc()
		missingTexts = append(missingTexts, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missingTexts) == 0 {
		return embeddings, nil
	}

	fresh, err := e.inner.EmbedBatch(ctx, missingTexts)
	if err != nil {
		return nil, err
	}

	for j, embedding := range fresh {
		embeddings[missingIdx[j]] = embedding
		if err := e.cache.SetEmbedding(ctx, missingTexts[j], embedding); err != nil {
			logger.Warn("Failed to cache embedding", zap.Error(err))
		}
	}

	return embeddings, nil
}
