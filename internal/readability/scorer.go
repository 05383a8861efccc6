package readability

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	prose "github.com/jdkato/prose/v2"
)

// Metrics holds the readability statistics for a piece of text. It is a pure
// function of the input, recomputed on demand and never persisted.
type Metrics struct {
	FleschReadingEase   float64 `json:"flesch_reading_ease"`
	FleschKincaidGrade  float64 `json:"flesch_kincaid_grade"`
	GunningFog          float64 `json:"gunning_fog"`
	SMOGIndex           float64 `json:"smog_index"`
	ColemanLiauIndex    float64 `json:"coleman_liau_index"`
	AvgGradeLevel       float64 `json:"avg_grade_level"`
	WordCount           int     `json:"word_count"`
	SentenceCount       int     `json:"sentence_count"`
	AvgWordsPerSentence float64 `json:"avg_words_per_sentence"`
	IsPatientFriendly   bool    `json:"is_patient_friendly"`

	// GradedFormulas is how many grade formulas landed in the plausible
	// range. Zero means AvgGradeLevel carries no signal for this text.
	GradedFormulas int `json:"-"`
}

// Scorer computes grade-level readability metrics. Texts shorter than ten
// words score as trivially readable rather than dividing by zero.
type Scorer struct {
	targetGradeLevel float64
	minReadingEase   float64
}

func NewScorer(targetGradeLevel, minReadingEase float64) *Scorer {
	if targetGradeLevel <= 0 {
		targetGradeLevel = 8.0
	}
	if minReadingEase <= 0 {
		minReadingEase = 60.0
	}
	return &Scorer{
		targetGradeLevel: targetGradeLevel,
		minReadingEase:   minReadingEase,
	}
}

func (s *Scorer) TargetGradeLevel() float64 { return s.targetGradeLevel }
func (s *Scorer) MinReadingEase() float64   { return s.minReadingEase }

func (s *Scorer) Score(text string) Metrics {
	words, sentenceCount := segment(text)

	if len(words) < 10 || sentenceCount == 0 {
		return Metrics{
			FleschReadingEase: 100.0,
			IsPatientFriendly: true,
			WordCount:         len(words),
			SentenceCount:     sentenceCount,
		}
	}

	wordCount := float64(len(words))
	sentences := float64(sentenceCount)

	var syllableTotal, complexWords, letterCount int
	for _, word := range words {
		syllables := countSyllables(word)
		syllableTotal += syllables
		if syllables >= 3 {
			complexWords++
		}
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				letterCount++
			}
		}
	}

	wordsPerSentence := wordCount / sentences
	syllablesPerWord := float64(syllableTotal) / wordCount

	ease := 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord
	fkGrade := 0.39*wordsPerSentence + 11.8*syllablesPerWord - 15.59
	fog := 0.4 * (wordsPerSentence + 100*float64(complexWords)/wordCount)
	smog := 1.0430*math.Sqrt(float64(complexWords)*30.0/sentences) + 3.1291
	coleman := 0.0588*(float64(letterCount)/wordCount*100) - 0.296*(sentences/wordCount*100) - 15.8

	avgGrade, graded := averageGrade(fkGrade, fog, smog, coleman)

	return Metrics{
		FleschReadingEase:   round1(ease),
		FleschKincaidGrade:  round1(fkGrade),
		GunningFog:          round1(fog),
		SMOGIndex:           round1(smog),
		ColemanLiauIndex:    round1(coleman),
		AvgGradeLevel:       round1(avgGrade),
		WordCount:           len(words),
		SentenceCount:       sentenceCount,
		AvgWordsPerSentence: round1(wordsPerSentence),
		IsPatientFriendly:   avgGrade <= s.targetGradeLevel && ease >= s.minReadingEase,
		GradedFormulas:      graded,
	}
}

// Recommendation describes which readability gate failed, if any.
func (s *Scorer) Recommendation(m Metrics) string {
	if m.IsPatientFriendly {
		return "This text is patient-friendly."
	}
	if m.AvgGradeLevel > s.targetGradeLevel && m.FleschReadingEase < s.minReadingEase {
		return fmt.Sprintf("Consider simplifying. Grade level %.1f exceeds the target of %.0f and reading ease %.1f is below %.0f.",
			m.AvgGradeLevel, s.targetGradeLevel, m.FleschReadingEase, s.minReadingEase)
	}
	if m.AvgGradeLevel > s.targetGradeLevel {
		return fmt.Sprintf("Consider simplifying. Grade level %.1f exceeds the target of %.0f.", m.AvgGradeLevel, s.targetGradeLevel)
	}
	return fmt.Sprintf("Consider simplifying. Reading ease %.1f is below the target of %.0f.", m.FleschReadingEase, s.minReadingEase)
}

// averageGrade is the mean of the grade metrics limited to the plausible
// 0-20 range, so a single formula blowing up on odd input cannot dominate.
// It also reports how many formulas survived the filter; callers comparing
// averages must not trust a zero average when no formula did.
func averageGrade(grades ...float64) (float64, int) {
	var sum float64
	var n int
	for _, g := range grades {
		if g >= 0 && g <= 20 {
			sum += g
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

var fallbackSentenceEnd = regexp.MustCompile(`[.!?]+(\s+|$)`)

// segment returns the word tokens and sentence count of text, using prose
// for segmentation with a plain-text fallback when parsing fails.
func segment(text string) ([]string, int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0
	}

	doc, err := prose.NewDocument(text, prose.WithExtraction(false), prose.WithTagging(false))
	if err != nil {
		words := strings.Fields(text)
		sentences := len(fallbackSentenceEnd.FindAllString(text, -1))
		if sentences == 0 {
			sentences = 1
		}
		return words, sentences
	}

	var words []string
	for _, tok := range doc.Tokens() {
		if hasLetterOrDigit(tok.Text) {
			words = append(words, tok.Text)
		}
	}

	sentences := len(doc.Sentences())
	if sentences == 0 && len(words) > 0 {
		sentences = 1
	}

	return words, sentences
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// countSyllables estimates English syllables by counting vowel groups with a
// silent-e adjustment. Exact dictionaries exist, but this heuristic tracks
// published formula implementations closely enough for grade scoring.
func countSyllables(word string) int {
	word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
	if word == "" {
		return 1
	}

	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}

	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}

	if count == 0 {
		count = 1
	}
	return count
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
