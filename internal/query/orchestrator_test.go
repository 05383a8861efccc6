package query

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkhilKas/patient-comm-assistant/internal/readability"
	"github.com/AkhilKas/patient-comm-assistant/internal/retrieval"
	"github.com/AkhilKas/patient-comm-assistant/internal/simplify"
	"github.com/AkhilKas/patient-comm-assistant/internal/storage/models"
	"github.com/AkhilKas/patient-comm-assistant/internal/vector"
)

const friendlyAnswer = "Take one pill each day. Take it with food. Drink a full glass of water. " +
	"Call us if you feel sick. We are here to help you. Rest at home for two days."

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

type fakeGenerator struct {
	response string
	prompts  []string
}

func (g *fakeGenerator) Generate(_ context.Context, _, userPrompt string) (string, error) {
	g.prompts = append(g.prompts, userPrompt)
	return g.response, nil
}

func newOrchestrator(t *testing.T, chunks []models.Chunk, gen *fakeGenerator) *Orchestrator {
	t.Helper()

	idx, err := vector.NewIndex(fakeEmbedder{}, nil)
	require.NoError(t, err)
	if len(chunks) > 0 {
		require.NoError(t, idx.Upsert(context.Background(), chunks))
	}

	scorer := readability.NewScorer(8, 60)
	retriever := retrieval.NewRetriever(idx, 0.0)
	engine := simplify.NewEngine(gen, scorer, 2, true)

	return NewOrchestrator(retriever, gen, engine, scorer)
}

func TestAnswerEmptyRetrieval(t *testing.T) {
	gen := &fakeGenerator{response: "should not be called"}
	orch := newOrchestrator(t, nil, gen)

	answer, err := orch.Answer(context.Background(), "how much aspirin", false, 3)
	require.NoError(t, err)

	assert.Equal(t, noContextAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.False(t, answer.Simplified)
	assert.Empty(t, gen.prompts)
}

func TestAnswerIncludesSourcesAndContext(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "c1", DocumentID: "d1", Section: "Medications", Text: "take aspirin 81 mg every morning"},
		{ID: "c2", DocumentID: "d1", Section: "Diet", Text: "avoid salty foods and drink water"},
	}
	gen := &fakeGenerator{response: friendlyAnswer}
	orch := newOrchestrator(t, chunks, gen)

	answer, err := orch.Answer(context.Background(), "take aspirin every morning", false, 3)
	require.NoError(t, err)

	assert.Equal(t, friendlyAnswer, answer.Text)
	assert.False(t, answer.Simplified)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "Medications", answer.Sources[0].Section)
	assert.Contains(t, answer.Sources[0].Content, "aspirin 81 mg")

	// The generation prompt carries the section-labelled context.
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "[Medications]")
	assert.Contains(t, gen.prompts[0], "take aspirin 81 mg every morning")
}

func TestAnswerSimplifierPass(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "c1", DocumentID: "d1", Section: "Medications", Text: "take aspirin 81 mg every morning"},
	}
	// The raw answer is already friendly, so the simplifier pass keeps it
	// but still marks the answer as simplified.
	gen := &fakeGenerator{response: friendlyAnswer}
	orch := newOrchestrator(t, chunks, gen)

	answer, err := orch.Answer(context.Background(), "aspirin dose", true, 3)
	require.NoError(t, err)

	assert.True(t, answer.Simplified)
	assert.Equal(t, friendlyAnswer, answer.Text)
	assert.True(t, answer.Readability.IsPatientFriendly)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 240))

	long := strings.Repeat("a", 300)
	got := truncate(long, 240)
	assert.Len(t, got, 243)
	assert.True(t, strings.HasSuffix(got, "..."))
}
