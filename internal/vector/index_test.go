package vector

import (
	"context"
	"hash/fnv"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkhilKas/patient-comm-assistant/internal/storage/models"
)

// fakeEmbedder maps word frequencies into a fixed-width vector so identical
// texts embed identically and similar texts score higher than unrelated ones.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 32)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%32]++
	}
	return vec, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func chunk(id, section, text string) models.Chunk {
	return models.Chunk{ID: id, DocumentID: "doc1", Section: section, Text: text}
}

func TestQueryReturnsMostSimilarFirst(t *testing.T) {
	idx, err := NewIndex(fakeEmbedder{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	err = idx.Upsert(ctx, []models.Chunk{
		chunk("c1", "Medications", "take aspirin every morning with food"),
		chunk("c2", "Activity", "walk for thirty minutes each day"),
		chunk("c3", "Diet", "avoid salty foods and drink water"),
	})
	require.NoError(t, err)

	results, err := idx.Query(ctx, "take aspirin every morning with food", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestQueryTieBreaksByInsertionOrder(t *testing.T) {
	idx, err := NewIndex(fakeEmbedder{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	err = idx.Upsert(ctx, []models.Chunk{
		chunk("first", "General", "rest and drink fluids"),
		chunk("second", "General", "rest and drink fluids"),
	})
	require.NoError(t, err)

	results, err := idx.Query(ctx, "rest and drink fluids", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "first", results[0].Chunk.ID)
	assert.Equal(t, "second", results[1].Chunk.ID)
}

func TestUpsertOverwriteKeepsOrdering(t *testing.T) {
	idx, err := NewIndex(fakeEmbedder{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	err = idx.Upsert(ctx, []models.Chunk{
		chunk("first", "General", "rest and drink fluids"),
		chunk("second", "General", "rest and drink fluids"),
	})
	require.NoError(t, err)

	// Re-upserting an existing id must not demote it behind newer chunks.
	err = idx.Upsert(ctx, []models.Chunk{
		chunk("first", "General", "rest and drink fluids"),
	})
	require.NoError(t, err)

	results, err := idx.Query(ctx, "rest and drink fluids", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Chunk.ID)

	stats := idx.Stats()
	assert.Equal(t, 2, stats.TotalChunks)
}

func TestQueryFewerThanK(t *testing.T) {
	idx, err := NewIndex(fakeEmbedder{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	err = idx.Upsert(ctx, []models.Chunk{
		chunk("c1", "General", "keep the wound clean and dry"),
	})
	require.NoError(t, err)

	results, err := idx.Query(ctx, "wound care", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestClearEmptiesIndex(t *testing.T) {
	idx, err := NewIndex(fakeEmbedder{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	err = idx.Upsert(ctx, []models.Chunk{
		chunk("c1", "Medications", "take aspirin daily"),
		chunk("c2", "Diet", "eat more vegetables"),
	})
	require.NoError(t, err)

	require.NoError(t, idx.Clear(ctx))

	stats := idx.Stats()
	assert.Equal(t, 0, stats.TotalChunks)
	assert.Empty(t, stats.Sections)

	results, err := idx.Query(ctx, "aspirin", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStatsReportsSortedSections(t *testing.T) {
	idx, err := NewIndex(fakeEmbedder{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	err = idx.Upsert(ctx, []models.Chunk{
		chunk("c1", "Medications", "take aspirin daily"),
		chunk("c2", "Diet", "eat more vegetables"),
		chunk("c3", "Medications", "refill before you run out"),
	})
	require.NoError(t, err)

	stats := idx.Stats()
	assert.Equal(t, 3, stats.TotalChunks)
	assert.Equal(t, []string{"Diet", "Medications"}, stats.Sections)
}

func TestConcurrentQueryAndClear(t *testing.T) {
	idx, err := NewIndex(fakeEmbedder{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	var chunks []models.Chunk
	for i := 0; i < 20; i++ {
		chunks = append(chunks, chunk(string(rune('a'+i)), "General", "take your medicine on time"))
	}
	require.NoError(t, idx.Upsert(ctx, chunks))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				results, err := idx.Query(ctx, "medicine", 5)
				// Queries see the index before or after the clear, never
				// a partial state.
				assert.NoError(t, err)
				assert.True(t, len(results) == 0 || len(results) == 5)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, idx.Clear(ctx))
	}()

	wg.Wait()
}

func TestPersistenceAcrossRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	store, err := NewStore(dbPath)
	require.NoError(t, err)

	idx, err := NewIndex(fakeEmbedder{}, store)
	require.NoError(t, err)

	err = idx.Upsert(ctx, []models.Chunk{
		chunk("first", "Medications", "take aspirin every morning"),
		chunk("second", "Medications", "take aspirin every morning"),
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	reloaded, err := NewIndex(fakeEmbedder{}, store)
	require.NoError(t, err)

	stats := reloaded.Stats()
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, []string{"Medications"}, stats.Sections)

	// Insertion order survives the restart, including tie-breaking.
	results, err := reloaded.Query(ctx, "take aspirin every morning", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Chunk.ID)
}
