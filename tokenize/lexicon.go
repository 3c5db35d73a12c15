package tokenize

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// LexiconTokenizer tokenizes by greedy longest match against a tagged term
// lexicon. Runs of text with no lexicon entry fall through to character-class
// segmentation: digit runs become serial-number tokens, Latin runs foreign
// tokens, Hangul runs general nouns, anything else a symbol per rune.
type LexiconTokenizer struct {
	entries map[string]string // surface form -> tag
	maxLen  int               // longest entry, in runes
}

// LoadLexicon reads a lexicon file with one entry per line, "form<TAB>tag".
// Lines without a tag default to general noun; blank lines and #-comments
// are skipped. Forms are stored Clean-ed so lookup matches tokenizer input.
func LoadLexicon(path string) (*LexiconTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lexicon: %w", err)
	}
	defer f.Close()

	lt := &LexiconTokenizer{entries: make(map[string]string)}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		form, tag, found := strings.Cut(raw, "\t")
		if !found {
			tag = TagNounGeneral
		}
		form = Clean(form)
		tag = strings.TrimSpace(tag)
		if form == "" {
			continue
		}
		if tag == "" {
			tag = TagNounGeneral
		}
		lt.entries[form] = tag
		if n := len([]rune(form)); n > lt.maxLen {
			lt.maxLen = n
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	if len(lt.entries) == 0 {
		return nil, fmt.Errorf("lexicon %s: no entries", path)
	}
	return lt, nil
}

// NewLexiconTokenizer builds a tokenizer from an in-memory lexicon, mainly
// for tests.
func NewLexiconTokenizer(entries map[string]string) *LexiconTokenizer {
	lt := &LexiconTokenizer{entries: make(map[string]string, len(entries))}
	for form, tag := range entries {
		form = Clean(form)
		if form == "" {
			continue
		}
		lt.entries[form] = tag
		if n := len([]rune(form)); n > lt.maxLen {
			lt.maxLen = n
		}
	}
	return lt
}

// Size returns the number of lexicon entries.
func (lt *LexiconTokenizer) Size() int { return len(lt.entries) }

// Tokenize implements Tokenizer by greedy longest match per whitespace
// segment.
func (lt *LexiconTokenizer) Tokenize(text string) ([]Token, error) {
	var out []Token
	for _, segment := range strings.Fields(text) {
		out = lt.tokenizeSegment([]rune(segment), out)
	}
	return out, nil
}

func (lt *LexiconTokenizer) tokenizeSegment(runes []rune, out []Token) []Token {
	i := 0
	for i < len(runes) {
		matched := false
		limit := lt.maxLen
		if rest := len(runes) - i; limit > rest {
			limit = rest
		}
		for n := limit; n >= 1; n-- {
			candidate := string(runes[i : i+n])
			if tag, ok := lt.entries[candidate]; ok {
				out = append(out, Token{Form: candidate, Tag: tag})
				i += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		form, tag, n := classifyRun(runes[i:])
		out = append(out, Token{Form: form, Tag: tag})
		i += n
	}
	return out
}

// classifyRun consumes the longest homogeneous character-class run at the
// start of the slice and assigns a fallback tag.
func classifyRun(runes []rune) (string, string, int) {
	class := runeClass(runes[0])
	n := 1
	for n < len(runes) && runeClass(runes[n]) == class {
		n++
	}
	form := string(runes[:n])
	switch class {
	case classDigit:
		return form, TagSerialNumber, n
	case classLatin:
		return form, TagForeign, n
	case classHangul:
		return form, TagNounGeneral, n
	default:
		// Symbols are emitted one rune at a time.
		return string(runes[0]), TagSymbol, 1
	}
}

const (
	classDigit = iota
	classLatin
	classHangul
	classOther
)

func runeClass(r rune) int {
	switch {
	case unicode.IsDigit(r):
		return classDigit
	case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		return classLatin
	case r >= 0xAC00 && r <= 0xD7A3:
		return classHangul
	default:
		return classOther
	}
}
