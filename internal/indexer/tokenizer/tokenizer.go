// Package tokenizer provides text tokenisation for the lexical index and the
// query parser. It folds case and accents, splits on non-alphanumeric
// boundaries, removes Portuguese stop-words, and applies a light
// plural-stripping stemmer so "Locações" and "locacao" meet on one term.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stopWords = map[string]struct{}{
	"a": {}, "o": {}, "as": {}, "os": {}, "um": {}, "uma": {},
	"uns": {}, "umas": {}, "de": {}, "da": {}, "do": {}, "das": {},
	"dos": {}, "em": {}, "na": {}, "no": {}, "nas": {}, "nos": {},
	"por": {}, "para": {}, "pela": {}, "pelo": {}, "com": {}, "sem": {},
	"e": {}, "ou": {}, "que": {}, "se": {}, "ao": {}, "aos": {},
	"sua": {}, "seu": {}, "suas": {}, "seus": {}, "ser": {}, "sao": {},
	"esta": {}, "este": {}, "essa": {}, "esse": {}, "isso": {}, "como": {},
	"mais": {}, "mas": {}, "ja": {}, "nao": {}, "sob": {}, "entre": {},
	"the": {}, "of": {}, "and": {}, "to": {}, "in": {}, "for": {},
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Fold lower-cases s and strips combining marks, so "Locação" becomes
// "locacao". It is safe for concurrent use.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Words returns the folded alphanumeric words of text, without stop-word
// removal or stemming.
func Words(text string) []string {
	return strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Tokenize breaks text into a slice of stemmed, folded Tokens with
// stop-words removed.
func Tokenize(text string) []Token {
	words := Words(text)
	tokens := make([]Token, 0, len(words)/2)
	pos := 0
	for _, word := range words {
		if len(word) < 2 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		stemmed := Stem(word)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     stemmed,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms returns just the terms of Tokenize(text).
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

var suffixes = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"coes", "cao", 3},
	{"soes", "sao", 3},
	{"oes", "ao", 3},
	{"aes", "ao", 3},
	{"ais", "al", 3},
	{"eis", "el", 3},
	{"ois", "ol", 3},
	{"res", "r", 3},
	{"zes", "z", 3},
	{"ns", "m", 2},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// Stem applies a plural-stripping stemmer to a folded word.
func Stem(word string) string {
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
			return word
		}
	}
	return word
}
