package bidpredict

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Vectorizer converts a token sequence into a single relevance score using a
// frozen vocabulary and per-term IDF weights. Both are fitted once at
// training time and never change afterwards, so a Vectorizer is safe to share
// across concurrent requests without locking.
type Vectorizer struct {
	vocabulary map[string]int
	idf        []float64
}

// VectorizerOptions controls training-time vocabulary construction.
type VectorizerOptions struct {
	// MaxFeatures caps the vocabulary size; terms are kept by descending
	// corpus count. Zero means unlimited.
	MaxFeatures int
	// MinDocFreq drops terms appearing in fewer documents than this.
	MinDocFreq int
	// MaxDocProportion drops terms appearing in more than this share of the
	// documents. Zero disables the cap.
	MaxDocProportion float64
}

// DefaultVectorizerOptions mirror the parameters the shipped artifacts were
// fitted with.
func DefaultVectorizerOptions() VectorizerOptions {
	return VectorizerOptions{MaxFeatures: 5000, MinDocFreq: 2, MaxDocProportion: 0.95}
}

// NewVectorizer builds a Vectorizer around an already-fitted vocabulary and
// IDF vector, typically loaded from an artifact.
func NewVectorizer(vocabulary map[string]int, idf []float64) (*Vectorizer, error) {
	if len(vocabulary) != len(idf) {
		return nil, fmt.Errorf("vocabulary has %d terms but idf has %d weights", len(vocabulary), len(idf))
	}
	for term, idx := range vocabulary {
		if idx < 0 || idx >= len(idf) {
			return nil, fmt.Errorf("term %q has out-of-range index %d", term, idx)
		}
	}
	return &Vectorizer{vocabulary: vocabulary, idf: idf}, nil
}

// FitVectorizer learns a vocabulary and smoothed IDF weights from tokenized
// documents. Index assignment follows sorted term order, so two fits over the
// same corpus produce identical layouts.
func FitVectorizer(docs [][]string, opts VectorizerOptions) (*Vectorizer, error) {
	if len(docs) == 0 {
		return nil, errors.New("fit vectorizer: no documents")
	}
	docFreq := make(map[string]int)
	corpusCount := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{}, len(doc))
		for _, term := range doc {
			if term == "" {
				continue
			}
			corpusCount[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				docFreq[term]++
			}
		}
	}

	maxDF := len(docs)
	if opts.MaxDocProportion > 0 {
		maxDF = int(opts.MaxDocProportion * float64(len(docs)))
	}
	kept := make([]string, 0, len(docFreq))
	for term, df := range docFreq {
		if opts.MinDocFreq > 0 && df < opts.MinDocFreq {
			continue
		}
		if df > maxDF {
			continue
		}
		kept = append(kept, term)
	}
	if len(kept) == 0 {
		return nil, errors.New("fit vectorizer: no terms survive frequency pruning")
	}
	if opts.MaxFeatures > 0 && len(kept) > opts.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			ci, cj := corpusCount[kept[i]], corpusCount[kept[j]]
			if ci == cj {
				return kept[i] < kept[j]
			}
			return ci > cj
		})
		kept = kept[:opts.MaxFeatures]
	}
	sort.Strings(kept)

	vocabulary := make(map[string]int, len(kept))
	idf := make([]float64, len(kept))
	n := float64(len(docs))
	for i, term := range kept {
		vocabulary[term] = i
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
	return &Vectorizer{vocabulary: vocabulary, idf: idf}, nil
}

// Size returns the vocabulary size.
func (v *Vectorizer) Size() int { return len(v.vocabulary) }

// Vocabulary returns a copy of the term-to-index mapping.
func (v *Vectorizer) Vocabulary() map[string]int {
	out := make(map[string]int, len(v.vocabulary))
	for term, idx := range v.vocabulary {
		out[term] = idx
	}
	return out
}

// IDF returns a copy of the per-index IDF weights.
func (v *Vectorizer) IDF() []float64 {
	out := make([]float64, len(v.idf))
	copy(out, v.idf)
	return out
}

// Score reduces a token sequence to one scalar. Terms outside the frozen
// vocabulary are ignored; present terms contribute a sublinear term frequency
// (1 + ln count) times their IDF weight, the resulting sparse vector is
// L2-normalized, and the reduction sums columnIndex x weight over the nonzero
// entries.
//
// The index-weighted reduction makes the score sensitive to vocabulary layout,
// not only to term importance. Previously trained models were fitted against
// scores produced this way, so the reduction is frozen; do not replace it with
// a norm or a plain sum.
//
// Empty input, or input with no vocabulary overlap, scores exactly 0.
func (v *Vectorizer) Score(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, term := range tokens {
		if idx, ok := v.vocabulary[term]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return 0
	}

	// Accumulate in ascending index order. Float summation is order
	// dependent, and ranging over the maps directly would make repeated
	// scores of the same input drift in the last bits.
	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	weights := make([]float64, len(indices))
	var sq float64
	for i, idx := range indices {
		w := (1 + math.Log(float64(counts[idx]))) * v.idf[idx]
		weights[i] = w
		sq += w * w
	}
	norm := math.Sqrt(sq)
	if norm == 0 {
		return 0
	}

	var score float64
	for i, idx := range indices {
		score += float64(idx) * (weights[i] / norm)
	}
	return score
}

// ScoreAll scores a batch of token sequences.
func (v *Vectorizer) ScoreAll(docs [][]string) []float64 {
	out := make([]float64, len(docs))
	for i, doc := range docs {
		out[i] = v.Score(doc)
	}
	return out
}
