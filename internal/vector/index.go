package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/storage/models"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

// ErrInconsistent signals that the id mapping and the vector list diverged.
// This indicates a bug in the locking discipline and is not recoverable.
var ErrInconsistent = errors.New("index state inconsistent")

// Embedder is the external embedding capability.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type SearchResult struct {
	Chunk models.Chunk
	Score float64
}

type Stats struct {
	TotalChunks int
	Sections    []string
}

type entry struct {
	chunk  models.Chunk
	vector []float32
	seq    uint64
}

// Index holds chunk vectors and text in memory behind a reader/writer lock.
// Readers see either the pre-mutation or the post-mutation state, never a
// mixture. An optional Store makes the contents survive restarts.
type Index struct {
	embedder Embedder
	store    *Store

	mu      sync.RWMutex
	byID    map[string]int
	entries []entry
	nextSeq uint64
}

// NewIndex builds an index over the given embedder. A nil store keeps the
// index memory-only; otherwise previously persisted chunks are loaded.
func NewIndex(embedder Embedder, store *Store) (*Index, error) {
	idx := &Index{
		embedder: embedder,
		store:    store,
		byID:     make(map[string]int),
	}

	if store != nil {
		records, err := store.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted index: %w", err)
		}
		for _, rec := range records {
			idx.byID[rec.Chunk.ID] = len(idx.entries)
			idx.entries = append(idx.entries, entry{chunk: rec.Chunk, vector: rec.Vector, seq: rec.Seq})
			if rec.Seq >= idx.nextSeq {
				idx.nextSeq = rec.Seq + 1
			}
		}
		logger.Info("Index loaded from store", zap.Int("chunks", len(idx.entries)))
	}

	return idx, nil
}

// Upsert embeds the chunk texts and stores them keyed by chunk id.
// Re-upserting an existing id overwrites in place. The embedding calls run
// before the write lock is taken; the in-memory apply and the persistence
// write form one atomic step, so a failure leaves the index untouched.
func (idx *Index) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(chunks))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	records := make([]Record, len(chunks))
	for i, chunk := range chunks {
		seq := idx.nextSeq + uint64(i)
		if pos, ok := idx.byID[chunk.ID]; ok {
			// Overwrites keep their original insertion sequence so query
			// tie-breaking stays stable.
			seq = idx.entries[pos].seq
		}
		records[i] = Record{Chunk: chunk, Vector: vectors[i], Seq: seq}
	}

	if idx.store != nil {
		if err := idx.store.SaveRecords(records); err != nil {
			return fmt.Errorf("failed to persist chunks: %w", err)
		}
	}

	for _, rec := range records {
		if pos, ok := idx.byID[rec.Chunk.ID]; ok {
			idx.entries[pos] = entry{chunk: rec.Chunk, vector: rec.Vector, seq: rec.Seq}
			continue
		}
		idx.byID[rec.Chunk.ID] = len(idx.entries)
		idx.entries = append(idx.entries, entry{chunk: rec.Chunk, vector: rec.Vector, seq: rec.Seq})
		idx.nextSeq = rec.Seq + 1
	}

	logger.Info("Chunks upserted", zap.Int("count", len(chunks)), zap.Int("total", len(idx.entries)))

	return nil
}

// Query embeds text and returns the k most similar chunks by cosine
// similarity, descending. Ties go to the chunk inserted earlier. Fewer than
// k results are returned when the index holds fewer chunks.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	queryVector, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.byID) != len(idx.entries) {
		return nil, fmt.Errorf("%w: %d ids, %d vectors", ErrInconsistent, len(idx.byID), len(idx.entries))
	}

	type scored struct {
		pos   int
		score float64
	}

	scores := make([]scored, len(idx.entries))
	for i := range idx.entries {
		scores[i] = scored{pos: i, score: cosineSimilarity(idx.entries[i].vector, queryVector)}
	}

	sort.Slice(scores, func(a, b int) bool {
		if scores[a].score != scores[b].score {
			return scores[a].score > scores[b].score
		}
		return idx.entries[scores[a].pos].seq < idx.entries[scores[b].pos].seq
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]SearchResult, 0, k)
	for _, s := range scores[:k] {
		results = append(results, SearchResult{
			Chunk: idx.entries[s.pos].chunk,
			Score: s.score,
		})
	}

	return results, nil
}

// Clear removes all chunks atomically. In-flight queries finish against the
// old contents or start against the empty index.
func (idx *Index) Clear(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.store != nil {
		if err := idx.store.Clear(); err != nil {
			return fmt.Errorf("failed to clear persisted index: %w", err)
		}
	}

	idx.byID = make(map[string]int)
	idx.entries = nil

	logger.Info("Index cleared")

	return nil
}

func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	sectionSet := make(map[string]struct{})
	for _, e := range idx.entries {
		sectionSet[e.chunk.Section] = struct{}{}
	}

	sections := make([]string, 0, len(sectionSet))
	for s := range sectionSet {
		sections = append(sections, s)
	}
	sort.Strings(sections)

	return Stats{
		TotalChunks: len(idx.entries),
		Sections:    sections,
	}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
