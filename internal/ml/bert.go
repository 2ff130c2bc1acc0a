package ml

import (
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// DefaultEncoderName is the pretrained encoder expected under bert_cache/.
const DefaultEncoderName = "bert-base-multilingual-cased"

// EncoderAvailable reports whether the pretrained encoder artefacts
// (vocab.txt plus encoder weights) are present in the cache.
func EncoderAvailable(cacheDir, name string) bool {
	dir := filepath.Join(cacheDir, name)
	for _, f := range []string{"vocab.txt", "encoder.gob"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			return false
		}
	}
	return true
}

// LoadPretrainedEncoder loads the frozen encoder weights and its WordPiece
// tokeniser from bert_cache/<name>/. A missing cache is a missing-dependency
// error, not an io error: the variant simply cannot run on this install.
func LoadPretrainedEncoder(cacheDir, name string, maxLen int) (*Matrix, *WordPieceTokenizer, error) {
	dir := filepath.Join(cacheDir, name)
	tok, err := LoadWordPieceTokenizer(dir, maxLen)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(dir, "encoder.gob"))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pretrained encoder %s", ErrMissingDependency, name)
	}
	defer f.Close()
	var enc Matrix
	if err := gob.NewDecoder(f).Decode(&enc); err != nil {
		return nil, nil, fmt.Errorf("failed to decode pretrained encoder: %w", err)
	}
	if enc.Rows < len(tok.Vocab) {
		return nil, nil, fmt.Errorf("pretrained encoder covers %d tokens, vocabulary has %d", enc.Rows, len(tok.Vocab))
	}
	return &enc, tok, nil
}

// SavePretrainedEncoder writes encoder weights into the cache layout that
// LoadPretrainedEncoder reads. Used by cache-priming tooling and tests.
func SavePretrainedEncoder(cacheDir, name string, enc *Matrix, tok *WordPieceTokenizer) error {
	dir := filepath.Join(cacheDir, name)
	if err := tok.Save(dir); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, "encoder.gob"))
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(enc)
}

// BERTNetwork is the bert variant: a frozen pretrained encoder pooled over
// the attention mask, then a trainable dense head (128 relu, dropout 0.3,
// softmax). Only the head parameters move during training; the optimiser
// runs at the transformer fine-tuning rate 2e-5.
type BERTNetwork struct {
	D, L, K     int
	EncoderName string
	Seed        int64

	Encoder *Matrix // frozen, vocab x D
	W1      *Matrix // 128 x D
	B1      []float64
	WOut    *Matrix // K x 128
	BOut    []float64

	st *netState
}

// NewBERTNetwork builds the head over a frozen encoder.
func NewBERTNetwork(encoder *Matrix, encoderName string, l, k int, seed int64) *BERTNetwork {
	rng := rand.New(rand.NewSource(seed))
	const d1 = 128
	d := encoder.Cols
	return &BERTNetwork{
		D: d, L: l, K: k, EncoderName: encoderName, Seed: seed,
		Encoder: encoder,
		W1:      glorot(rng, d1, d, d, d1),
		B1:      make([]float64, d1),
		WOut:    glorot(rng, k, d1, d1, k),
		BOut:    make([]float64, k),
	}
}

func (n *BERTNetwork) state() *netState {
	if n.st == nil {
		// The frozen encoder stays out of the optimiser.
		n.st = newNetState(n.Seed+1, 2e-5, [][]float64{
			n.W1.Data, n.B1,
			n.WOut.Data, n.BOut,
		})
	}
	return n.st
}

const (
	bertGW1 = iota
	bertGB1
	bertGWOut
	bertGBOut
)

type bertFwd struct {
	pooled []float64
	h1     []float64
	m1     []float64
	probs  []float64
}

// forward pools the frozen encoder states over the attention mask. The
// pooled representation is the masked mean: with a frozen encoder the
// first-token state is input-independent, so the mean carries the signal.
func (n *BERTNetwork) forward(ids, mask []int, training bool) *bertFwd {
	st := n.state()
	f := &bertFwd{pooled: make([]float64, n.D)}
	var count float64
	for t, id := range ids {
		if t < len(mask) && mask[t] == 0 {
			continue
		}
		row := n.Encoder.Row(id)
		for j := 0; j < n.D; j++ {
			f.pooled[j] += row[j]
		}
		count++
	}
	if count > 0 {
		for j := range f.pooled {
			f.pooled[j] /= count
		}
	}

	f.h1 = affine(n.W1, n.B1, f.pooled)
	reluInPlace(f.h1)
	if training {
		f.m1 = dropoutMask(st.rng, len(f.h1), 0.3)
		applyMask(f.h1, f.m1)
	}
	f.probs = affine(n.WOut, n.BOut, f.h1)
	softmaxInPlace(f.probs)
	return f
}

// TrainBatch implements NeuralNetwork.
func (n *BERTNetwork) TrainBatch(ids, mask [][]int, labels []int) float64 {
	st := n.state()
	g := st.grads
	var loss float64

	for s := range ids {
		f := n.forward(ids[s], mask[s], true)
		loss += crossEntropy(f.probs, labels[s])

		dOut := append([]float64(nil), f.probs...)
		dOut[labels[s]]--
		dH1 := affineBack(n.WOut, f.h1, dOut, g[bertGWOut], g[bertGBOut])
		applyMask(dH1, f.m1)
		reluBack(f.h1, dH1)
		affineBack(n.W1, f.pooled, dH1, g[bertGW1], g[bertGB1])
	}

	scale := 1 / float64(len(ids))
	for _, gr := range g {
		for j := range gr {
			gr[j] *= scale
		}
	}
	st.opt.step(st.params, g)
	return loss * scale
}

// PredictProba implements NeuralNetwork.
func (n *BERTNetwork) PredictProba(ids, mask [][]int) *mat.Dense {
	P := mat.NewDense(len(ids), n.K, nil)
	for i := range ids {
		var m []int
		if i < len(mask) {
			m = mask[i]
		}
		f := n.forward(ids[i], m, false)
		copy(P.RawRowView(i), f.probs)
	}
	return P
}

// InputLen implements NeuralNetwork.
func (n *BERTNetwork) InputLen() int { return n.L }

// NumClasses implements NeuralNetwork.
func (n *BERTNetwork) NumClasses() int { return n.K }
