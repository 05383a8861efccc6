package simplify

import (
	"strings"
	"unicode"

	prose "github.com/jdkato/prose/v2"
)

// protectedEntities extracts the tokens a simplification must carry over
// verbatim: numbers (dosages, frequencies) and proper nouns (medication and
// clinician names). Baseline policy is exact token match; the part-of-speech
// tags come from prose, with a shape-based fallback when tagging fails.
func protectedEntities(text string) []string {
	seen := make(map[string]struct{})
	var entities []string

	add := func(tok string) {
		tok = strings.Trim(tok, ".,;:()")
		if tok == "" {
			return
		}
		if _, dup := seen[tok]; dup {
			return
		}
		seen[tok] = struct{}{}
		entities = append(entities, tok)
	}

	doc, err := prose.NewDocument(text, prose.WithExtraction(false))
	if err != nil {
		for _, tok := range strings.Fields(text) {
			if looksNumeric(tok) || looksProper(tok) {
				add(tok)
			}
		}
		return entities
	}

	for _, tok := range doc.Tokens() {
		switch tok.Tag {
		case "CD":
			add(tok.Text)
		case "NNP", "NNPS":
			if looksProper(tok.Text) {
				add(tok.Text)
			}
		}
	}

	return entities
}

// missingEntities returns the protected tokens absent from the draft.
// Matching is per token, not substring, so a changed dose ("50" rewritten
// as "500") counts as missing. Numbers must match exactly; names match
// case-insensitively, since a simplification may legitimately move a name
// to mid-sentence.
func missingEntities(entities []string, draft string) []string {
	exact := make(map[string]struct{})
	folded := make(map[string]struct{})
	for _, tok := range strings.Fields(draft) {
		tok = strings.Trim(tok, ".,;:()")
		if tok == "" {
			continue
		}
		exact[tok] = struct{}{}
		folded[strings.ToLower(tok)] = struct{}{}
	}

	var missing []string
	for _, entity := range entities {
		if looksNumeric(entity) {
			if _, ok := exact[entity]; !ok {
				missing = append(missing, entity)
			}
			continue
		}
		if _, ok := folded[strings.ToLower(entity)]; !ok {
			missing = append(missing, entity)
		}
	}
	return missing
}

func looksNumeric(tok string) bool {
	for _, r := range tok {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func looksProper(tok string) bool {
	runes := []rune(tok)
	if len(runes) < 2 {
		return false
	}
	return unicode.IsUpper(runes[0]) && unicode.IsLower(runes[1])
}
