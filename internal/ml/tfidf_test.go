package ml

import (
	"errors"
	"math"
	"testing"
)

func TestTFIDFFitTransformShape(t *testing.T) {
	texts := []string{
		"java backend developer spring",
		"nurse hospital patient care",
		"java spring microservices",
		"patient care clinical nurse",
	}
	v := NewTFIDFVectorizer(len(texts))
	X, features, err := v.FitTransform(texts)
	if err != nil {
		t.Fatalf("FitTransform: %v", err)
	}

	rows, cols := X.Dims()
	if rows != len(texts) {
		t.Errorf("rows = %d, want %d", rows, len(texts))
	}
	if cols != features {
		t.Errorf("cols = %d, feature count = %d", cols, features)
	}
	if features != v.VocabSize() {
		t.Errorf("feature count = %d, VocabSize = %d", features, v.VocabSize())
	}
}

func TestTFIDFRowsAreL2Normalised(t *testing.T) {
	texts := []string{
		"accountant ledger balance audit",
		"surgeon operating theatre scalpel",
		"audit tax ledger accountant",
	}
	v := NewTFIDFVectorizer(len(texts))
	X, _, err := v.FitTransform(texts)
	if err != nil {
		t.Fatalf("FitTransform: %v", err)
	}

	rows, cols := X.Dims()
	for i := 0; i < rows; i++ {
		var norm float64
		for j := 0; j < cols; j++ {
			val := X.At(i, j)
			if val < 0 {
				t.Fatalf("X[%d,%d] = %f, want non-negative", i, j, val)
			}
			norm += val * val
		}
		if math.Abs(math.Sqrt(norm)-1) > 1e-9 {
			t.Errorf("row %d norm = %f, want 1", i, math.Sqrt(norm))
		}
	}
}

func TestTFIDFIncludesBigrams(t *testing.T) {
	texts := []string{
		"machine learning engineer",
		"machine learning researcher",
		"civil engineer construction site",
	}
	v := NewTFIDFVectorizer(len(texts))
	if _, _, err := v.FitTransform(texts); err != nil {
		t.Fatalf("FitTransform: %v", err)
	}
	if _, ok := v.Vocab["machine learning"]; !ok {
		t.Errorf("bigram %q missing from vocabulary %v", "machine learning", v.Vocab)
	}
}

func TestTFIDFTransformUnknownTermsZero(t *testing.T) {
	texts := []string{"alpha beta", "beta gamma"}
	v := NewTFIDFVectorizer(len(texts))
	if _, _, err := v.FitTransform(texts); err != nil {
		t.Fatalf("FitTransform: %v", err)
	}

	X := v.Transform([]string{"omicron zeta"})
	_, cols := X.Dims()
	for j := 0; j < cols; j++ {
		if X.At(0, j) != 0 {
			t.Errorf("X[0,%d] = %f, want 0 for fully out-of-vocabulary text", j, X.At(0, j))
		}
	}
}

func TestTFIDFMaxFeaturesDerivation(t *testing.T) {
	tests := []struct {
		corpusSize int
		want       int
	}{
		{corpusSize: 3, want: 300},
		{corpusSize: 50, want: 5000},
		{corpusSize: 200, want: 5000},
	}
	for _, tt := range tests {
		v := NewTFIDFVectorizer(tt.corpusSize)
		if v.MaxFeatures != tt.want {
			t.Errorf("MaxFeatures for corpus of %d = %d, want %d", tt.corpusSize, v.MaxFeatures, tt.want)
		}
	}
}

func TestTFIDFEmptyCorpus(t *testing.T) {
	v := NewTFIDFVectorizer(0)
	if _, _, err := v.FitTransform(nil); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("err = %v, want ErrEmptyCorpus", err)
	}
}

func TestTFIDFStopWordsDropped(t *testing.T) {
	texts := []string{"the quick fox", "the lazy dog"}
	v := NewTFIDFVectorizer(len(texts))
	v.StopWords = []string{"the"}
	if _, _, err := v.FitTransform(texts); err != nil {
		t.Fatalf("FitTransform: %v", err)
	}
	if _, ok := v.Vocab["the"]; ok {
		t.Error("stop word survived in vocabulary")
	}
}
