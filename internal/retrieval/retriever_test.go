package retrieval

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkhilKas/patient-comm-assistant/internal/storage/models"
	"github.com/AkhilKas/patient-comm-assistant/internal/vector"
)

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

func buildIndex(t *testing.T, chunks []models.Chunk) *vector.Index {
	t.Helper()
	idx, err := vector.NewIndex(fakeEmbedder{}, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(context.Background(), chunks))
	return idx
}

func TestRetrieveDropsLowScores(t *testing.T) {
	idx := buildIndex(t, []models.Chunk{
		{ID: "c1", DocumentID: "d1", Section: "Warning Signs", Text: "call your doctor if the fever returns"},
		{ID: "c2", DocumentID: "d1", Section: "Diet", Text: "citrus fruit vegetables whole grains breakfast"},
	})

	retriever := NewRetriever(idx, 0.99)

	results, err := retriever.Retrieve(context.Background(), "call your doctor if the fever returns", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Chunk.ID)
}

func TestRetrieveDeduplicatesDocumentSection(t *testing.T) {
	idx := buildIndex(t, []models.Chunk{
		{ID: "c1", DocumentID: "d1", Section: "Medications", Text: "take your aspirin with breakfast"},
		{ID: "c2", DocumentID: "d1", Section: "Medications", Text: "take your aspirin with dinner"},
		{ID: "c3", DocumentID: "d2", Section: "Medications", Text: "take your aspirin with water"},
	})

	retriever := NewRetriever(idx, 0.0)

	results, err := retriever.Retrieve(context.Background(), "take your aspirin", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Same document and section collapse to the best-scoring chunk; the
	// other document survives.
	docs := map[string]int{}
	for _, res := range results {
		docs[res.Chunk.DocumentID]++
	}
	assert.Equal(t, 1, docs["d1"])
	assert.Equal(t, 1, docs["d2"])
}

func TestRetrieveCapsAtNResults(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "c1", DocumentID: "d1", Section: "General", Text: "rest at home for two days"},
		{ID: "c2", DocumentID: "d2", Section: "General", Text: "rest at home for three days"},
		{ID: "c3", DocumentID: "d3", Section: "General", Text: "rest at home for four days"},
		{ID: "c4", DocumentID: "d4", Section: "General", Text: "rest at home for five days"},
	}
	idx := buildIndex(t, chunks)

	retriever := NewRetriever(idx, 0.0)

	results, err := retriever.Retrieve(context.Background(), "rest at home", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieveEmptyIndex(t *testing.T) {
	idx, err := vector.NewIndex(fakeEmbedder{}, nil)
	require.NoError(t, err)

	retriever := NewRetriever(idx, 0.2)

	results, err := retriever.Retrieve(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveDefaultsNResults(t *testing.T) {
	idx := buildIndex(t, []models.Chunk{
		{ID: "c1", DocumentID: "d1", Section: "General", Text: "drink plenty of water"},
	})

	retriever := NewRetriever(idx, 0.0)

	results, err := retriever.Retrieve(context.Background(), "drink water", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
