package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/readability"
	"github.com/AkhilKas/patient-comm-assistant/internal/retrieval"
	"github.com/AkhilKas/patient-comm-assistant/internal/simplify"
	"github.com/AkhilKas/patient-comm-assistant/internal/vector"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

const noContextAnswer = "I couldn't find relevant information in your documents. Try rephrasing your question or uploading the document that covers it."

const sourcePreviewLength = 240

// Generator is the external generation capability.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Source is one supporting chunk attached to an answer for citation.
type Source struct {
	Section string  `json:"section"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Answer is the structured response to a patient question. It is transient
// and never persisted.
type Answer struct {
	Text        string
	Readability readability.Metrics
	Sources     []Source
	Simplified  bool
}

// Orchestrator composes retrieval context into a grounded prompt, invokes
// generation once, optionally simplifies the raw answer, and attaches
// scoring and sources.
type Orchestrator struct {
	retriever  *retrieval.Retriever
	generator  Generator
	simplifier *simplify.Engine
	scorer     *readability.Scorer
}

func NewOrchestrator(retriever *retrieval.Retriever, generator Generator, simplifier *simplify.Engine, scorer *readability.Scorer) *Orchestrator {
	return &Orchestrator{
		retriever:  retriever,
		generator:  generator,
		simplifier: simplifier,
		scorer:     scorer,
	}
}

// Answer requires a non-empty index; callers check stats first. On an empty
// retrieval it degrades to a canned answer with no sources.
func (o *Orchestrator) Answer(ctx context.Context, question string, useSimplifier bool, nResults int) (*Answer, error) {
	results, err := o.retriever.Retrieve(ctx, question, nResults)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	if len(results) == 0 {
		logger.Info("No supporting chunks found", zap.String("question", question))
		return &Answer{
			Text:        noContextAnswer,
			Readability: o.scorer.Score(noContextAnswer),
		}, nil
	}

	contextBlock := buildContext(results)

	raw, err := o.generator.Generate(ctx, simplify.SystemPrompt, simplify.AnswerPrompt(question, contextBlock))
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	raw = strings.TrimSpace(raw)

	answer := &Answer{
		Text:        raw,
		Readability: o.scorer.Score(raw),
		Sources:     buildSources(results),
	}

	if useSimplifier {
		simplified, err := o.simplifier.Simplify(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to simplify answer: %w", err)
		}
		answer.Text = simplified.Simplified
		answer.Readability = simplified.After
		answer.Simplified = true
	}

	logger.Info("Question answered",
		zap.String("question", question),
		zap.Int("sources", len(answer.Sources)),
		zap.Bool("simplified", answer.Simplified),
		zap.Float64("avg_grade_level", answer.Readability.AvgGradeLevel),
	)

	return answer, nil
}

// buildContext concatenates chunk texts with their section labels in
// retrieval-rank order.
func buildContext(results []vector.SearchResult) string {
	var builder strings.Builder
	for i, res := range results {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(fmt.Sprintf("[%s]\n%s", res.Chunk.Section, res.Chunk.Text))
	}
	return builder.String()
}

func buildSources(results []vector.SearchResult) []Source {
	sources := make([]Source, 0, len(results))
	for _, res := range results {
		sources = append(sources, Source{
			Section: res.Chunk.Section,
			Content: truncate(res.Chunk.Text, sourcePreviewLength),
			Score:   res.Score,
		})
	}
	return sources
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
