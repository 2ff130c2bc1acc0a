package ml

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]{2,}`)

// TFIDFVectorizer turns raw texts into l2-normalised tf-idf rows. Fit decides
// the vocabulary; Transform projects any text into that fixed space.
type TFIDFVectorizer struct {
	MaxFeatures int
	NGramMin    int
	NGramMax    int
	MinDF       int
	MaxDF       float64
	StopWords   []string

	Vocab map[string]int
	IDF   []float64

	stop map[string]struct{}
}

// NewTFIDFVectorizer returns a vectorizer with the corpus-size derived
// defaults: max features min(5000, 100*n), (1,2)-grams, min df 1 below ten
// documents and 2 otherwise, max df 0.95.
func NewTFIDFVectorizer(corpusSize int) *TFIDFVectorizer {
	maxFeatures := 100 * corpusSize
	if maxFeatures > 5000 {
		maxFeatures = 5000
	}
	minDF := 1
	if corpusSize >= 10 {
		minDF = 2
	}
	return &TFIDFVectorizer{
		MaxFeatures: maxFeatures,
		NGramMin:    1,
		NGramMax:    2,
		MinDF:       minDF,
		MaxDF:       0.95,
	}
}

func (v *TFIDFVectorizer) ensureStop() {
	if v.stop == nil {
		v.stop = make(map[string]struct{}, len(v.StopWords))
		for _, w := range v.StopWords {
			v.stop[w] = struct{}{}
		}
	}
}

// terms extracts the n-gram terms of one document.
func (v *TFIDFVectorizer) terms(text string) []string {
	v.ensureStop()
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(v.stop) > 0 {
		kept := words[:0]
		for _, w := range words {
			if _, skip := v.stop[w]; !skip {
				kept = append(kept, w)
			}
		}
		words = kept
	}
	var out []string
	for n := v.NGramMin; n <= v.NGramMax; n++ {
		for i := 0; i+n <= len(words); i++ {
			out = append(out, strings.Join(words[i:i+n], " "))
		}
	}
	return out
}

// FitTransform learns the vocabulary and idf weights over the corpus and
// returns the tf-idf matrix together with the vocabulary size.
func (v *TFIDFVectorizer) FitTransform(texts []string) (*mat.Dense, int, error) {
	if len(texts) == 0 {
		return nil, 0, ErrEmptyCorpus
	}

	// Document frequency and corpus frequency per candidate term.
	df := make(map[string]int)
	cf := make(map[string]int)
	docTerms := make([][]string, len(texts))
	for i, text := range texts {
		terms := v.terms(text)
		docTerms[i] = terms
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			cf[t]++
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				df[t]++
			}
		}
	}

	n := len(texts)
	maxDFCount := int(v.MaxDF * float64(n))
	if maxDFCount < 1 {
		maxDFCount = 1
	}
	var candidates []string
	for t, d := range df {
		if d < v.MinDF || d > maxDFCount {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return nil, 0, ErrEmptyCorpus
	}

	// Keep the most frequent terms, then fix an alphabetical index order.
	if v.MaxFeatures > 0 && len(candidates) > v.MaxFeatures {
		sort.Slice(candidates, func(i, j int) bool {
			if cf[candidates[i]] != cf[candidates[j]] {
				return cf[candidates[i]] > cf[candidates[j]]
			}
			return candidates[i] < candidates[j]
		})
		candidates = candidates[:v.MaxFeatures]
	}
	sort.Strings(candidates)

	v.Vocab = make(map[string]int, len(candidates))
	v.IDF = make([]float64, len(candidates))
	for i, t := range candidates {
		v.Vocab[t] = i
		// Smoothed idf, matching the usual tf-idf formulation.
		v.IDF[i] = math.Log(float64(1+n)/float64(1+df[t])) + 1
	}

	X := mat.NewDense(n, len(candidates), nil)
	for i, terms := range docTerms {
		v.fillRow(X.RawRowView(i), terms)
	}
	return X, len(candidates), nil
}

// Transform projects texts into the fitted space.
func (v *TFIDFVectorizer) Transform(texts []string) *mat.Dense {
	X := mat.NewDense(len(texts), len(v.IDF), nil)
	for i, text := range texts {
		v.fillRow(X.RawRowView(i), v.terms(text))
	}
	return X
}

func (v *TFIDFVectorizer) fillRow(row []float64, terms []string) {
	for _, t := range terms {
		if j, ok := v.Vocab[t]; ok {
			row[j]++
		}
	}
	var norm float64
	for j := range row {
		if row[j] > 0 {
			row[j] *= v.IDF[j]
			norm += row[j] * row[j]
		}
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for j := range row {
			row[j] /= norm
		}
	}
}

// VocabSize returns the number of fitted features.
func (v *TFIDFVectorizer) VocabSize() int { return len(v.IDF) }
