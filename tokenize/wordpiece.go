package tokenize

import (
	"fmt"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// WordpieceTokenizer wraps a pretrained subword tokenizer as a fallback for
// text the domain lexicon cannot segment. Subword pieces carry no
// grammatical tags, so every piece is tagged by the character class of its
// leading rune, like the lexicon fallback.
type WordpieceTokenizer struct {
	tk *tokenizer.Tokenizer
}

// FromTokenizerFile loads a tokenizer.json (huggingface format) from disk.
func FromTokenizerFile(path string) (*WordpieceTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &WordpieceTokenizer{tk: tk}, nil
}

// Tokenize implements Tokenizer.
func (w *WordpieceTokenizer) Tokenize(text string) ([]Token, error) {
	if text == "" {
		return nil, nil
	}
	enc, err := w.tk.EncodeSingle(text)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	pieces := enc.GetTokens()
	out := make([]Token, 0, len(pieces))
	for _, piece := range pieces {
		form := strings.TrimPrefix(piece, "##")
		if form == "" || isSpecialPiece(form) {
			continue
		}
		_, tag, _ := classifyRun([]rune(form))
		out = append(out, Token{Form: form, Tag: tag})
	}
	return out, nil
}

func isSpecialPiece(piece string) bool {
	return strings.HasPrefix(piece, "[") && strings.HasSuffix(piece, "]")
}
