package ml

import "testing"

func TestTokenizerPadding(t *testing.T) {
	tok := &Tokenizer{VocabSize: 100, MaxLen: 8}
	tok.Fit([]string{"alpha beta gamma", "alpha beta delta"})

	seqs := tok.Encode([]string{"alpha beta"})
	seq := seqs[0]
	if len(seq) != 8 {
		t.Fatalf("sequence length = %d, want 8", len(seq))
	}
	if seq[0] == PadIndex || seq[1] == PadIndex {
		t.Errorf("known words encoded as padding: %v", seq)
	}
	for i := 2; i < 8; i++ {
		if seq[i] != PadIndex {
			t.Errorf("position %d = %d, want pad", i, seq[i])
		}
	}
}

func TestTokenizerTruncation(t *testing.T) {
	tok := &Tokenizer{VocabSize: 100, MaxLen: 3}
	tok.Fit([]string{"one two three four five six"})

	seqs := tok.Encode([]string{"one two three four five six"})
	if len(seqs[0]) != 3 {
		t.Fatalf("sequence length = %d, want 3", len(seqs[0]))
	}
	for i, idx := range seqs[0] {
		if idx == PadIndex {
			t.Errorf("position %d padded despite long input", i)
		}
	}
}

func TestTokenizerOOV(t *testing.T) {
	tok := &Tokenizer{VocabSize: 100, MaxLen: 4}
	tok.Fit([]string{"alpha beta alpha beta"})

	seqs := tok.Encode([]string{"alpha zzz"})
	if seqs[0][1] != OOVIndex {
		t.Errorf("unknown word encoded as %d, want OOV index %d", seqs[0][1], OOVIndex)
	}
}

func TestTokenizerVocabBudget(t *testing.T) {
	// Budget of 4 leaves room for two words after pad and OOV.
	tok := &Tokenizer{VocabSize: 4, MaxLen: 4}
	tok.Fit([]string{"aa aa aa bb bb cc dd"})

	if len(tok.Index) != 2 {
		t.Fatalf("vocabulary size = %d, want 2", len(tok.Index))
	}
	// Most frequent words win, ranked from index 2.
	if tok.Index["aa"] != 2 {
		t.Errorf("index of most frequent word = %d, want 2", tok.Index["aa"])
	}
	if tok.Index["bb"] != 3 {
		t.Errorf("index of second word = %d, want 3", tok.Index["bb"])
	}
}
