package ingestion

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkhilKas/patient-comm-assistant/internal/storage/models"
)

func TestChunkEmptyInput(t *testing.T) {
	chunker := NewChunker(300, 50)

	assert.Nil(t, chunker.Chunk(""))
	assert.Nil(t, chunker.Chunk("   \n\t  \n"))
}

func TestChunkSectionLabels(t *testing.T) {
	chunker := NewChunker(300, 50)

	text := "You were treated for pneumonia.\n" +
		"Medications:\n" +
		"Take amoxicillin 500 mg three times daily. Finish the full course.\n" +
		"Warning Signs:\n" +
		"Call your doctor if your fever returns. Go to the ER if you cannot breathe."

	drafts := chunker.Chunk(text)
	require.Len(t, drafts, 3)

	assert.Equal(t, "General", drafts[0].Section)
	assert.Contains(t, drafts[0].Text, "pneumonia")

	assert.Equal(t, "Medications", drafts[1].Section)
	assert.Contains(t, drafts[1].Text, "amoxicillin 500 mg")

	assert.Equal(t, "Warning Signs", drafts[2].Section)
	assert.Contains(t, drafts[2].Text, "fever returns")
}

func TestChunkMarkdownHeadings(t *testing.T) {
	chunker := NewChunker(300, 50)

	text := "## Follow-Up\nSee Dr. Smith in two weeks.\n\n## Wound Care\nKeep the incision dry."

	drafts := chunker.Chunk(text)
	require.Len(t, drafts, 2)

	assert.Equal(t, "Follow-up", drafts[0].Section)
	// Headings outside the vocabulary become title-cased labels.
	assert.Equal(t, "Wound Care", drafts[1].Section)
}

func TestChunkHeaderFalsePositives(t *testing.T) {
	chunker := NewChunker(300, 50)

	// A long body line ending with a colon must not start a section.
	text := "Before your appointment please gather all of the following items listed here:\nyour insurance card and a photo ID."

	drafts := chunker.Chunk(text)
	require.Len(t, drafts, 1)
	assert.Equal(t, "General", drafts[0].Section)
}

func TestChunkProtectsAbbreviations(t *testing.T) {
	chunker := NewChunker(300, 50)

	drafts := chunker.Chunk("See Dr. Smith at 9 a.m. on Monday. Bring your medication list.")
	require.Len(t, drafts, 1)
	assert.Contains(t, drafts[0].Text, "Dr. Smith")
	assert.Contains(t, drafts[0].Text, "9 a.m.")
}

func TestChunkProtectsAbbreviationsAnyCase(t *testing.T) {
	chunker := NewChunker(300, 50)

	drafts := chunker.Chunk("see dr. smith at 9 A.M. on monday. bring your medication list.")
	require.Len(t, drafts, 1)
	assert.Contains(t, drafts[0].Text, "dr. smith")
	assert.Contains(t, drafts[0].Text, "9 A.M.")
}

func TestChunkNonASCIIHeading(t *testing.T) {
	chunker := NewChunker(300, 50)

	text := "## Éducation du patient\nPrenez un comprimé chaque matin avec de la nourriture."

	drafts := chunker.Chunk(text)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Éducation Du Patient", drafts[0].Section)
	assert.True(t, utf8.ValidString(drafts[0].Section))
}

func TestChunkSplitsOnSizeWithOverlap(t *testing.T) {
	chunker := NewChunker(20, 8)

	var sentences []string
	for i := 0; i < 6; i++ {
		sentences = append(sentences, "Take one tablet of your blood pressure medicine every single morning.")
	}
	text := strings.Join(sentences, " ")

	drafts := chunker.Chunk(text)
	require.Greater(t, len(drafts), 1)

	for _, d := range drafts {
		assert.Equal(t, "General", d.Section)
		assert.NotEmpty(t, d.Text)
	}

	// Every sentence must appear in at least one chunk.
	joined := strings.Join(draftTexts(drafts), " ")
	assert.Contains(t, joined, "every single morning")
}

func TestChunkLongSentenceSplitsOnClauses(t *testing.T) {
	chunker := NewChunker(10, 0)

	text := "Take your medicine with food every morning, drink a full glass of water with it, avoid grapefruit juice while on this prescription, and call the office if you feel dizzy."

	drafts := chunker.Chunk(text)
	require.Greater(t, len(drafts), 1)

	joined := strings.Join(draftTexts(drafts), " ")
	assert.Contains(t, joined, "grapefruit juice")
	assert.Contains(t, joined, "feel dizzy")
}

func TestNewChunkerClampsBadValues(t *testing.T) {
	chunker := NewChunker(0, -5)
	assert.Equal(t, 300, chunker.chunkSize)
	assert.Equal(t, 0, chunker.chunkOverlap)

	chunker = NewChunker(100, 200)
	assert.Equal(t, 25, chunker.chunkOverlap)
}

func draftTexts(drafts []models.ChunkDraft) []string {
	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Text
	}
	return texts
}
