package index

import (
	"strings"
	"unicode"
)

// Tokenize lowercases the input and splits it on non-alphanumeric
// boundaries, dropping empty tokens.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
