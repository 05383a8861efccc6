package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/vector"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

// Retriever turns a question into a ranked, deduplicated set of supporting
// chunks. Results below the similarity floor are dropped even when they fall
// inside the top-n, and near-duplicates from the same document section are
// collapsed to the highest-scoring one.
type Retriever struct {
	index    *vector.Index
	minScore float64
}

func NewRetriever(index *vector.Index, minScore float64) *Retriever {
	return &Retriever{
		index:    index,
		minScore: minScore,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, nResults int) ([]vector.SearchResult, error) {
	if nResults <= 0 {
		nResults = 3
	}

	// Over-fetch so dedup and the score floor still leave nResults when
	// possible.
	raw, err := r.index.Query(ctx, query, nResults*2)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	seen := make(map[string]struct{})
	results := make([]vector.SearchResult, 0, nResults)

	for _, res := range raw {
		if res.Score < r.minScore {
			continue
		}
		key := res.Chunk.DocumentID + "\x00" + res.Chunk.Section
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		results = append(results, res)
		if len(results) == nResults {
			break
		}
	}

	logger.Debug("Chunks retrieved",
		zap.String("query", query),
		zap.Int("raw", len(raw)),
		zap.Int("kept", len(results)),
	)

	return results, nil
}
