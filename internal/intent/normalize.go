package intent

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// Normalize lowercases the input, splits it into word tokens, stems each
// token and rejoins them single-spaced. Applying Normalize to its own
// output yields the same string.
func Normalize(text, language string) string {
	lowered := strings.ToLower(text)
	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		stemmed, err := snowball.Stem(tok, language, false)
		if err != nil || stemmed == "" {
			stemmed = tok
		}
		out = append(out, stemmed)
	}
	return strings.Join(out, " ")
}
