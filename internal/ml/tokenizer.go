package ml

import (
	"sort"
	"strings"
)

const (
	// PadIndex fills sequences up to the fixed length.
	PadIndex = 0
	// OOVIndex marks words outside the fitted vocabulary.
	OOVIndex = 1

	// DefaultVocabSize is the word-index vocabulary budget V.
	DefaultVocabSize = 10000
	// DefaultMaxLen is the fixed sequence length L.
	DefaultMaxLen = 512
)

// Tokenizer is the word-index tokeniser used by the lstm and cnn variants:
// a frequency-ranked vocabulary with an out-of-vocabulary sentinel and fixed
// length post-padded / post-truncated sequences.
type Tokenizer struct {
	VocabSize int
	MaxLen    int
	Index     map[string]int
}

// NewTokenizer returns a tokenizer with the default V and L.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{VocabSize: DefaultVocabSize, MaxLen: DefaultMaxLen}
}

// Fit ranks words by corpus frequency and keeps the VocabSize-2 most
// frequent; indices 0 and 1 are reserved for padding and OOV.
func (t *Tokenizer) Fit(texts []string) {
	freq := make(map[string]int)
	for _, text := range texts {
		for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
			freq[w]++
		}
	}
	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	budget := t.VocabSize - 2
	if len(words) > budget {
		words = words[:budget]
	}
	t.Index = make(map[string]int, len(words))
	for i, w := range words {
		t.Index[w] = i + 2
	}
}

// Encode turns texts into fixed-length index sequences.
func (t *Tokenizer) Encode(texts []string) [][]int {
	out := make([][]int, len(texts))
	for i, text := range texts {
		seq := make([]int, t.MaxLen)
		words := wordPattern.FindAllString(strings.ToLower(text), -1)
		for j, w := range words {
			if j >= t.MaxLen {
				break
			}
			if idx, ok := t.Index[w]; ok {
				seq[j] = idx
			} else {
				seq[j] = OOVIndex
			}
		}
		out[i] = seq
	}
	return out
}
