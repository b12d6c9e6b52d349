package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// CountTokens estimates the number of model tokens in text: about 4/3 of
// the word count, or a quarter of the character count for dense text such
// as numbers and identifiers, whichever is larger.
func CountTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	byWords := words * 4 / 3
	byChars := utf8.RuneCountInString(text) / 4
	return max(byWords, byChars, 1)
}
