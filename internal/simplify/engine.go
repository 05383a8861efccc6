package simplify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/readability"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

// Generator is the external generation capability.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Result reports a simplification run. The improvement deltas are signed and
// may be negative when refinement regresses; they are reported as measured.
type Result struct {
	Original              string
	Simplified            string
	Before                readability.Metrics
	After                 readability.Metrics
	MetTarget             bool
	Attempts              int
	GradeLevelReduction   float64
	FleschEaseImprovement float64
}

// Engine rewrites medical text toward the target reading level with a
// bounded draft/score/refine loop.
type Engine struct {
	generator   Generator
	scorer      *readability.Scorer
	maxRetries  int
	entityCheck bool
}

func NewEngine(generator Generator, scorer *readability.Scorer, maxRetries int, entityCheck bool) *Engine {
	if maxRetries < 0 {
		maxRetries = 2
	}
	return &Engine{
		generator:   generator,
		scorer:      scorer,
		maxRetries:  maxRetries,
		entityCheck: entityCheck,
	}
}

// Simplify runs up to 1+maxRetries generation attempts. A draft is accepted
// when it meets the readability thresholds and keeps every protected entity;
// otherwise the model is re-prompted with concrete feedback. An exhausted
// budget returns the best draft seen (entity-clean drafts first, then the
// betterScored ranking) with MetTarget false; that is not an error.
func (e *Engine) Simplify(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	before := e.scorer.Score(text)

	if before.IsPatientFriendly {
		logger.Debug("Text already meets readability target, skipping simplification")
		return &Result{
			Original:   text,
			Simplified: text,
			Before:     before,
			After:      before,
			MetTarget:  true,
		}, nil
	}

	var entities []string
	if e.entityCheck {
		entities = protectedEntities(text)
	}

	var (
		bestDraft   string
		bestMetrics readability.Metrics
		bestClean   bool
		haveBest    bool
		prompt      = simplifyPrompt(text)
		attempts    int
	)

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		draft, err := e.generator.Generate(ctx, SystemPrompt, prompt)
		if err != nil {
			return nil, fmt.Errorf("failed to generate simplification: %w", err)
		}
		draft = strings.TrimSpace(draft)
		attempts++

		after := e.scorer.Score(draft)
		missing := missingEntities(entities, draft)
		clean := len(missing) == 0

		logger.Debug("Simplification attempt scored",
			zap.Int("attempt", attempts),
			zap.Float64("avg_grade_level", after.AvgGradeLevel),
			zap.Float64("reading_ease", after.FleschReadingEase),
			zap.Int("missing_entities", len(missing)),
		)

		if !haveBest ||
			(clean && !bestClean) ||
			(clean == bestClean && betterScored(after, bestMetrics)) {
			bestDraft, bestMetrics, bestClean, haveBest = draft, after, clean, true
		}

		if after.IsPatientFriendly && clean {
			return e.result(text, draft, before, after, true, attempts), nil
		}

		prompt = refinePrompt(text, draft, after, e.scorer.TargetGradeLevel(), e.scorer.MinReadingEase(), missing)
	}

	logger.Info("Simplification budget exhausted, returning best draft",
		zap.Int("attempts", attempts),
		zap.Float64("best_avg_grade_level", bestMetrics.AvgGradeLevel),
	)

	return e.result(text, bestDraft, before, bestMetrics, false, attempts), nil
}

// betterScored ranks drafts for the budget-exhaustion fallback. Text so
// dense that every grade formula fell outside the plausible range reports
// an average of zero; such a draft must never outrank one with real grades.
// Ties on average grade fall back to reading ease.
func betterScored(a, b readability.Metrics) bool {
	if (a.GradedFormulas > 0) != (b.GradedFormulas > 0) {
		return a.GradedFormulas > 0
	}
	if a.AvgGradeLevel != b.AvgGradeLevel {
		return a.AvgGradeLevel < b.AvgGradeLevel
	}
	return a.FleschReadingEase > b.FleschReadingEase
}

func (e *Engine) result(original, simplified string, before, after readability.Metrics, metTarget bool, attempts int) *Result {
	return &Result{
		Original:              original,
		Simplified:            simplified,
		Before:                before,
		After:                 after,
		MetTarget:             metTarget,
		Attempts:              attempts,
		GradeLevelReduction:   before.AvgGradeLevel - after.AvgGradeLevel,
		FleschEaseImprovement: after.FleschReadingEase - before.FleschReadingEase,
	}
}
