package vectors

import (
	"regexp"
	"strings"

	"github.com/hupe1980/sentvec/model"
)

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// A token is at least two characters long and has a letter after any leading digits.
var tokenPattern = regexp.MustCompile(`^\d*[a-z][\-.0-9:_a-z]+$`)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {}, "then": {}, "there": {},
	"these": {}, "they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// Tokenize lowercases text, splits it on whitespace, strips surrounding
// punctuation and drops stop words and tokens without letters.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.Trim(f, punctuation)
		if !tokenPattern.MatchString(tok) {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Tokens returns the token sequence of c. Pre-tokenized content is returned as is.
func Tokens(c model.Content) []string {
	if c.IsTokens() {
		return c.TokenSlice()
	}
	return Tokenize(c.Text())
}
