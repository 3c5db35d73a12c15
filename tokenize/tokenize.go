// Package tokenize turns raw procurement text into the filtered content
// tokens the scoring vocabulary was fitted on. The primary tokenizer is a
// longest-match pass over a tagged domain lexicon; a wordpiece tokenizer can
// serve as fallback for text the lexicon does not cover.
package tokenize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Token is one surface form with its grammatical tag.
type Token struct {
	Form string
	Tag  string
}

// Grammatical tags, following the tag set the lexicon is annotated with.
const (
	TagDeterminer   = "MM"
	TagNounGeneral  = "NNG"
	TagNounBound    = "NNB"
	TagNounProper   = "NNP"
	TagForeign      = "SL"
	TagPrefix       = "XPN"
	TagAdverb       = "MAG"
	TagNumeral      = "SN"
	TagSymbol       = "SO"
	TagSerialNumber = "W_SERIAL"
)

// contentTags is the frozen allow-list: only these tags survive filtering
// before scoring. Changing it changes every text score the models see.
var contentTags = map[string]bool{
	TagDeterminer:   true,
	TagNounGeneral:  true,
	TagNounBound:    true,
	TagNounProper:   true,
	TagForeign:      true,
	TagPrefix:       true,
	TagAdverb:       true,
	TagNumeral:      true,
	TagSymbol:       true,
	TagSerialNumber: true,
}

// IsContentTag reports whether tokens with the tag feed the scorer.
func IsContentTag(tag string) bool { return contentTags[tag] }

// FilterContent keeps only allow-listed tokens and returns their forms.
func FilterContent(tokens []Token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if contentTags[t.Tag] {
			out = append(out, t.Form)
		}
	}
	return out
}

// Clean normalizes raw field text before tokenization: NFKC folding,
// lowercasing, parentheses opened into spaces, the literal "n/a" filler
// dropped, and whitespace collapsed. Scoring and vocabulary fitting must
// run the same Clean or the frozen vocabulary stops matching.
func Clean(text string) string {
	s := norm.NFKC.String(text)
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '(', ')', '[', ']':
			return ' '
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = strings.ReplaceAll(s, "n/a", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Tokenizer produces tagged tokens from raw text.
type Tokenizer interface {
	Tokenize(text string) ([]Token, error)
}

// ContentTokens runs the full path raw text takes before scoring: Clean,
// tokenize, filter to content tags.
func ContentTokens(tk Tokenizer, text string) ([]string, error) {
	tokens, err := tk.Tokenize(Clean(text))
	if err != nil {
		return nil, err
	}
	return FilterContent(tokens), nil
}
