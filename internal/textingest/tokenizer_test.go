package textingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeSplitsOnWhitespaceAndPunctuation(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, tokenize("hello, world!"))
}

func TestTokenizeKeepsApostropheWithinAWord(t *testing.T) {
	assert.Equal(t, []string{"don't", "stop"}, tokenize("don't stop."))
}

func TestTokenizeKeepsDigitsInAComposition(t *testing.T) {
	assert.Equal(t, []string{"room42"}, tokenize("room42"))
}

func TestTokenizeOfEmptyStringIsEmpty(t *testing.T) {
	assert.Empty(t, tokenize(""))
}

func TestTokenizeOfOnlyPunctuationIsEmpty(t *testing.T) {
	assert.Empty(t, tokenize("... --- !!!"))
}

func TestTokenizeHandlesLeadingAndTrailingBoundaries(t *testing.T) {
	assert.Equal(t, []string{"mid"}, tokenize("  mid  "))
}
