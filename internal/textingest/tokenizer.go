package textingest

import "unicode"

// isCompositionRune reports whether r belongs to a composition run rather
// than a boundary. Letters, numbers, and the apostrophe (so contractions
// and possessives stay one composition) count; everything else splits.
func isCompositionRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\''
}

// tokenize splits text into maximal runs of composition runes, discarding
// boundary runs entirely: whitespace and punctuation are never themselves
// compositions.
func tokenize(text string) []string {
	var words []string
	start := -1
	runes := []rune(text)
	for i, r := range runes {
		if isCompositionRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			words = append(words, string(runes[start:i]))
			start = -1
		}
	}
	if start >= 0 {
		words = append(words, string(runes[start:]))
	}
	return words
}
