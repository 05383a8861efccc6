package ingestion

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AkhilKas/patient-comm-assistant/internal/storage/models"
)

// SectionRule maps a header pattern to a section label. Rules are evaluated
// top to bottom; the first match wins.
type SectionRule struct {
	Pattern *regexp.Regexp
	Label   string
}

func DefaultSectionRules() []SectionRule {
	return []SectionRule{
		{regexp.MustCompile(`(?i)^medications?(\s+(list|instructions?|prescribed))?\s*:?\s*$`), "Medications"},
		{regexp.MustCompile(`(?i)^(diagnosis|diagnoses)\s*:?\s*$`), "Diagnosis"},
		{regexp.MustCompile(`(?i)^follow[- ]?up(\s+(care|appointments?|instructions?))?\s*:?\s*$`), "Follow-up"},
		{regexp.MustCompile(`(?i)^(warning\s+signs?|when\s+to\s+(call|seek)(\s+\w+)*)\s*:?\s*$`), "Warning Signs"},
		{regexp.MustCompile(`(?i)^(discharge\s+)?instructions?\s*:?\s*$`), "Instructions"},
		{regexp.MustCompile(`(?i)^diet(ary)?(\s+(instructions?|restrictions?))?\s*:?\s*$`), "Diet"},
		{regexp.MustCompile(`(?i)^activity(\s+(restrictions?|instructions?|level))?\s*:?\s*$`), "Activity"},
		{regexp.MustCompile(`(?i)^allergies\s*:?\s*$`), "Allergies"},
		{regexp.MustCompile(`(?i)^procedures?(\s+performed)?\s*:?\s*$`), "Procedures"},
		{regexp.MustCompile(`(?i)^precautions?\s*:?\s*$`), "Precautions"},
		{regexp.MustCompile(`(?i)^(treatment|care\s+plan)\s*:?\s*$`), "Treatment"},
		{regexp.MustCompile(`(?i)^vital\s+signs?\s*:?\s*$`), "Vital Signs"},
	}
}

var markdownHeading = regexp.MustCompile(`^#{1,3}\s+(.+)$`)

// Sentence boundaries inside these would split dosage and title abbreviations.
// Matched case-insensitively, so "dr. smith" and "9 A.M." survive intact.
var protectedAbbreviations = []string{
	"Dr.", "Mr.", "Mrs.", "Ms.", "mg.", "mL.", "oz.", "lb.", "kg.",
	"a.m.", "p.m.", "e.g.", "i.e.", "vs.",
}

var abbreviationPatterns = compileAbbreviations()

func compileAbbreviations() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(protectedAbbreviations))
	for i, abbr := range protectedAbbreviations {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(abbr))
	}
	return patterns
}

var (
	sentenceEnd       = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
	clauseBoundary    = regexp.MustCompile(`[,;]|\s+(?:and|or|but)\s+`)
	trailingDecorator = regexp.MustCompile(`[:\-_]+$`)
)

// Chunker splits extracted document text into section-labelled, overlapping
// chunks. Sizes are measured in whitespace-delimited words, a close stand-in
// for model tokens on prose.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	rules        []SectionRule
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 300
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		rules:        DefaultSectionRules(),
	}
}

// Chunk splits document text into ordered chunk drafts. Empty or
// whitespace-only input yields nil, not an error. Output order equals
// document order; overlap only joins chunks within the same section.
func (c *Chunker) Chunk(text string) []models.ChunkDraft {
	var drafts []models.ChunkDraft
	for _, section := range c.splitIntoSections(text) {
		drafts = append(drafts, c.chunkSection(section.label, section.text)...)
	}
	return drafts
}

type section struct {
	label string
	text  string
}

func (c *Chunker) splitIntoSections(text string) []section {
	lines := strings.Split(text, "\n")

	var sections []section
	currentLabel := "General"
	var currentLines []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(currentLines, "\n"))
		if body != "" {
			sections = append(sections, section{label: currentLabel, text: body})
		}
		currentLines = currentLines[:0]
	}

	for _, line := range lines {
		if label, ok := c.matchHeader(strings.TrimSpace(line)); ok {
			flush()
			currentLabel = label
			continue
		}
		currentLines = append(currentLines, line)
	}
	flush()

	return sections
}

func (c *Chunker) matchHeader(line string) (string, bool) {
	if line == "" {
		return "", false
	}

	heading := line
	if m := markdownHeading.FindStringSubmatch(line); m != nil {
		heading = strings.TrimSpace(m[1])
	} else if len(strings.Fields(line)) > 6 {
		// Long lines are body text even when they end with a colon.
		return "", false
	}

	for _, rule := range c.rules {
		if rule.Pattern.MatchString(heading) {
			return rule.Label, true
		}
	}

	if heading != line {
		// A markdown heading outside the vocabulary still starts a section.
		return titleCase(trailingDecorator.ReplaceAllString(heading, "")), true
	}

	return "", false
}

func (c *Chunker) chunkSection(label, text string) []models.ChunkDraft {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var drafts []models.ChunkDraft
	var current []string
	currentWords := 0

	emit := func() {
		if len(current) > 0 {
			drafts = append(drafts, models.ChunkDraft{
				Text:    strings.Join(current, " "),
				Section: label,
			})
		}
	}

	for _, sentence := range sentences {
		words := countWords(sentence)

		if words > c.chunkSize {
			emit()
			current, currentWords = nil, 0
			for _, part := range c.splitLongSentence(sentence) {
				drafts = append(drafts, models.ChunkDraft{Text: part, Section: label})
			}
			continue
		}

		if currentWords+words > c.chunkSize && len(current) > 0 {
			emit()
			overlap := overlapSentences(current, c.chunkOverlap)
			current = append(overlap, sentence)
			currentWords = countWords(strings.Join(current, " "))
			continue
		}

		current = append(current, sentence)
		currentWords += words
	}
	emit()

	return drafts
}

// splitLongSentence breaks a sentence that alone exceeds the window on
// clause boundaries so no chunk silently drops text.
func (c *Chunker) splitLongSentence(sentence string) []string {
	parts := clauseBoundary.Split(sentence, -1)

	var chunks []string
	var current []string
	currentWords := 0

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		words := countWords(part)
		if currentWords+words > c.chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ", "))
			current, currentWords = nil, 0
		}
		current = append(current, part)
		currentWords += words
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ", "))
	}

	return chunks
}

func splitSentences(text string) []string {
	protected := text
	for _, pattern := range abbreviationPatterns {
		protected = pattern.ReplaceAllStringFunc(protected, func(m string) string {
			return strings.ReplaceAll(m, ".", "\x00")
		})
	}

	var sentences []string
	appendSentence := func(s string) {
		s = strings.TrimSpace(strings.ReplaceAll(s, "\x00", "."))
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(protected, -1) {
		appendSentence(protected[start:loc[1]])
		start = loc[1]
	}
	if start < len(protected) {
		appendSentence(protected[start:])
	}
	return sentences
}

// overlapSentences returns the trailing sentences of the previous chunk that
// fit within the overlap budget, preserving context across the split.
func overlapSentences(sentences []string, budget int) []string {
	var overlap []string
	words := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		w := countWords(sentences[i])
		if words+w > budget {
			break
		}
		overlap = append([]string{sentences[i]}, overlap...)
		words += w
	}
	return overlap
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
