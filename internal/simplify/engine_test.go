package simplify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkhilKas/patient-comm-assistant/internal/readability"
)

const hardText = "You should continue taking the prescribed Metoprolol 50 mg until your physician determines that stopping is appropriate. " +
	"If you experience significant dizziness or unusual swelling, you should contact the cardiology department without delay. " +
	"It is important to maintain a consistent medication schedule to support effective management of your underlying cardiovascular condition."

const easyText = "Take one pill each day. Take it with food. Drink a full glass of water. " +
	"Call us if you feel sick. We are here to help you. Rest at home for two days."

// easyDraft keeps the 50 mg dose and the drug name from hardText while
// scoring well inside the friendly range.
const easyDraft = "Keep taking your Metoprolol 50 mg pill each day. Do not stop on your own. Your doctor will tell you when to stop. " +
	"Call us if you feel dizzy. Call us if your legs swell. Take your pill at the same time each day. This helps your heart."

// fakeGenerator returns queued drafts in order and records the prompts it saw.
type fakeGenerator struct {
	drafts  []string
	err     error
	calls   int
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, _, userPrompt string) (string, error) {
	g.prompts = append(g.prompts, userPrompt)
	if g.err != nil {
		return "", g.err
	}
	draft := g.drafts[g.calls]
	if g.calls < len(g.drafts)-1 {
		g.calls++
	}
	return draft, nil
}

func newTestEngine(gen Generator, entityCheck bool) *Engine {
	return NewEngine(gen, readability.NewScorer(8, 60), 2, entityCheck)
}

func TestSimplifyAlreadyFriendlySkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{drafts: []string{"should never be used"}}
	engine := newTestEngine(gen, true)

	result, err := engine.Simplify(context.Background(), easyText)
	require.NoError(t, err)

	assert.True(t, result.MetTarget)
	assert.Equal(t, 0, result.Attempts)
	assert.Equal(t, result.Original, result.Simplified)
	assert.Empty(t, gen.prompts)
}

func TestSimplifyAcceptsFirstGoodDraft(t *testing.T) {
	gen := &fakeGenerator{drafts: []string{easyDraft}}
	engine := newTestEngine(gen, true)

	result, err := engine.Simplify(context.Background(), hardText)
	require.NoError(t, err)

	assert.True(t, result.MetTarget)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, easyDraft, result.Simplified)
	assert.True(t, result.After.IsPatientFriendly)
	assert.Positive(t, result.GradeLevelReduction)
	assert.Positive(t, result.FleschEaseImprovement)
}

func TestSimplifyRefinesOnMissingEntity(t *testing.T) {
	// First draft reads well but drops the 50 mg dose, forcing a refinement.
	droppedDose := "Keep taking your Metoprolol pill each day. Do not stop on your own. Your doctor will tell you when to stop. " +
		"Call us if you feel dizzy. Call us if your legs swell. Take your pill at the same time each day. This helps your heart."

	gen := &fakeGenerator{drafts: []string{droppedDose, easyDraft}}
	engine := newTestEngine(gen, true)

	result, err := engine.Simplify(context.Background(), hardText)
	require.NoError(t, err)

	assert.True(t, result.MetTarget)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, easyDraft, result.Simplified)

	// The refinement prompt names what was dropped.
	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "50")
}

func TestSimplifyEntityCheckDisabled(t *testing.T) {
	droppedDose := "Keep taking your heart pill each day. Do not stop on your own. Your doctor will tell you when to stop. " +
		"Call us if you feel dizzy. Call us if your legs swell. Take your pill at the same time each day. This helps your heart."

	gen := &fakeGenerator{drafts: []string{droppedDose}}
	engine := newTestEngine(gen, false)

	result, err := engine.Simplify(context.Background(), hardText)
	require.NoError(t, err)

	assert.True(t, result.MetTarget)
	assert.Equal(t, 1, result.Attempts)
}

func TestSimplifyBudgetExhaustedReturnsBestDraft(t *testing.T) {
	// Every draft keeps the entities but stays too complex; the run ends
	// with the best draft and MetTarget false rather than an error.
	gen := &fakeGenerator{drafts: []string{hardText, hardText, hardText}}
	engine := newTestEngine(gen, true)

	result, err := engine.Simplify(context.Background(), hardText)
	require.NoError(t, err)

	assert.False(t, result.MetTarget)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, hardText, result.Simplified)
	assert.False(t, result.After.IsPatientFriendly)
}

func TestSimplifyGeneratorError(t *testing.T) {
	genErr := errors.New("model offline")
	gen := &fakeGenerator{err: genErr}
	engine := newTestEngine(gen, true)

	_, err := engine.Simplify(context.Background(), hardText)
	require.Error(t, err)
	assert.ErrorIs(t, err, genErr)
}

func TestSimplifyBudgetExhaustedPrefersGradedDraft(t *testing.T) {
	// One very long polysyllabic sentence pushes every grade formula past
	// the plausible range, collapsing the average to zero. That zero must
	// not beat a draft with real grades when the budget runs out.
	denseDraft := "Subsequent to the administration of the prescribed pharmacological intervention, " +
		"patients demonstrating symptomatology consistent with adverse hypersensitivity manifestations " +
		"should immediately discontinue utilization and expeditiously communicate with their healthcare " +
		"practitioner regarding potential therapeutic alternatives and supplementary mitigation strategies."

	gen := &fakeGenerator{drafts: []string{denseDraft, hardText, denseDraft}}
	engine := newTestEngine(gen, false)

	result, err := engine.Simplify(context.Background(), denseDraft)
	require.NoError(t, err)

	assert.False(t, result.MetTarget)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, hardText, result.Simplified)
	assert.Positive(t, result.After.GradedFormulas)
}

func TestMissingEntities(t *testing.T) {
	entities := []string{"50", "Metoprolol"}

	assert.Empty(t, missingEntities(entities, "Take metoprolol 50 mg daily."))
	assert.Equal(t, []string{"50"}, missingEntities(entities, "Take Metoprolol daily."))
	assert.Equal(t, []string{"50", "Metoprolol"}, missingEntities(entities, "Take your pill daily."))

	// A rewritten dose must not satisfy the original number by substring.
	assert.Equal(t, []string{"50"}, missingEntities([]string{"50"}, "Take Metoprolol 500 mg daily."))
}

func TestProtectedEntitiesFindsDosesAndNames(t *testing.T) {
	entities := protectedEntities("Dr. Patel prescribed Metoprolol 50 mg twice daily.")

	assert.Contains(t, entities, "50")
	assert.Contains(t, entities, "Metoprolol")
}
