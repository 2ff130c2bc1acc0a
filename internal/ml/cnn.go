package ml

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// CNNNetwork is the cnn variant: embedding(V,128), a 1-D convolution with
// 128 filters of width 5, global max pooling, then dense 128 (dropout 0.5),
// dense 64 (dropout 0.3) and a softmax head.
type CNNNetwork struct {
	V, D, L, K int
	Filters    int
	Width      int
	Seed       int64

	Emb   *Matrix
	Conv  *Matrix // Filters x Width*D
	ConvB []float64
	W1    *Matrix // 128 x Filters
	B1    []float64
	W2    *Matrix // 64 x 128
	B2    []float64
	WOut  *Matrix // K x 64
	BOut  []float64

	st *netState
}

// NewCNNNetwork builds the cnn architecture for vocab V, length L and K
// classes.
func NewCNNNetwork(v, l, k int, seed int64) *CNNNetwork {
	rng := rand.New(rand.NewSource(seed))
	const d, filters, width, d1, d2 = 128, 128, 5, 128, 64
	return &CNNNetwork{
		V: v, D: d, L: l, K: k, Filters: filters, Width: width, Seed: seed,
		Emb:   glorot(rng, v, d, v, d),
		Conv:  glorot(rng, filters, width*d, width*d, filters),
		ConvB: make([]float64, filters),
		W1:    glorot(rng, d1, filters, filters, d1),
		B1:    make([]float64, d1),
		W2:    glorot(rng, d2, d1, d1, d2),
		B2:    make([]float64, d2),
		WOut:  glorot(rng, k, d2, d2, k),
		BOut:  make([]float64, k),
	}
}

func (n *CNNNetwork) state() *netState {
	if n.st == nil {
		n.st = newNetState(n.Seed+1, 1e-3, [][]float64{
			n.Emb.Data,
			n.Conv.Data, n.ConvB,
			n.W1.Data, n.B1,
			n.W2.Data, n.B2,
			n.WOut.Data, n.BOut,
		})
	}
	return n.st
}

const (
	cnnGEmb = iota
	cnnGConv
	cnnGConvB
	cnnGW1
	cnnGB1
	cnnGW2
	cnnGB2
	cnnGWOut
	cnnGBOut
)

type cnnFwd struct {
	T      int
	pool   []float64 // pooled relu activations
	argmax []int     // winning window position per filter
	h1, h2 []float64
	m1, m2 []float64
	probs  []float64
}

func (n *CNNNetwork) forward(ids []int, training bool) *cnnFwd {
	st := n.state()
	T := effLen(ids)
	if T < n.Width {
		T = n.Width
		if T > len(ids) {
			T = len(ids)
		}
	}
	f := &cnnFwd{T: T}

	positions := T - n.Width + 1
	if positions < 1 {
		positions = 1
	}
	f.pool = make([]float64, n.Filters)
	f.argmax = make([]int, n.Filters)
	for c := range f.pool {
		f.pool[c] = math.Inf(-1)
	}

	window := make([]float64, n.Width*n.D)
	for p := 0; p < positions; p++ {
		for w := 0; w < n.Width; w++ {
			idx := PadIndex
			if p+w < len(ids) {
				idx = ids[p+w]
			}
			copy(window[w*n.D:(w+1)*n.D], n.Emb.Row(idx))
		}
		for c := 0; c < n.Filters; c++ {
			v := dot(n.Conv.Row(c), window) + n.ConvB[c]
			if v < 0 {
				v = 0
			}
			if v > f.pool[c] {
				f.pool[c] = v
				f.argmax[c] = p
			}
		}
	}

	f.h1 = affine(n.W1, n.B1, f.pool)
	reluInPlace(f.h1)
	if training {
		f.m1 = dropoutMask(st.rng, len(f.h1), 0.5)
		applyMask(f.h1, f.m1)
	}
	f.h2 = affine(n.W2, n.B2, f.h1)
	reluInPlace(f.h2)
	if training {
		f.m2 = dropoutMask(st.rng, len(f.h2), 0.3)
		applyMask(f.h2, f.m2)
	}
	f.probs = affine(n.WOut, n.BOut, f.h2)
	softmaxInPlace(f.probs)
	return f
}

// TrainBatch implements NeuralNetwork.
func (n *CNNNetwork) TrainBatch(ids, _ [][]int, labels []int) float64 {
	st := n.state()
	g := st.grads
	var loss float64

	window := make([]float64, n.Width*n.D)
	for s := range ids {
		f := n.forward(ids[s], true)
		loss += crossEntropy(f.probs, labels[s])

		dOut := append([]float64(nil), f.probs...)
		dOut[labels[s]]--
		dH2 := affineBack(n.WOut, f.h2, dOut, g[cnnGWOut], g[cnnGBOut])
		applyMask(dH2, f.m2)
		reluBack(f.h2, dH2)
		dH1 := affineBack(n.W2, f.h1, dH2, g[cnnGW2], g[cnnGB2])
		applyMask(dH1, f.m1)
		reluBack(f.h1, dH1)
		dPool := affineBack(n.W1, f.pool, dH1, g[cnnGW1], g[cnnGB1])

		for c := 0; c < n.Filters; c++ {
			if f.pool[c] <= 0 || dPool[c] == 0 {
				continue // relu clipped or no gradient
			}
			d := dPool[c]
			p := f.argmax[c]
			for w := 0; w < n.Width; w++ {
				idx := PadIndex
				if p+w < len(ids[s]) {
					idx = ids[s][p+w]
				}
				copy(window[w*n.D:(w+1)*n.D], n.Emb.Row(idx))
			}
			g[cnnGConvB][c] += d
			convRow := n.Conv.Row(c)
			gRow := g[cnnGConv][c*n.Conv.Cols : (c+1)*n.Conv.Cols]
			for j := range window {
				gRow[j] += d * window[j]
			}
			for w := 0; w < n.Width; w++ {
				idx := PadIndex
				if p+w < len(ids[s]) {
					idx = ids[s][p+w]
				}
				embRow := g[cnnGEmb][idx*n.D : (idx+1)*n.D]
				for j := 0; j < n.D; j++ {
					embRow[j] += d * convRow[w*n.D+j]
				}
			}
		}
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
func (n *CNNNetwork) PredictProba(ids, _ [][]int) *mat.Dense {
	P := mat.NewDense(len(ids), n.K, nil)
	for i, seq := range ids {
		f := n.forward(seq, false)
		copy(P.RawRowView(i), f.probs)
	}
	return P
}

// InputLen implements NeuralNetwork.
func (n *CNNNetwork) InputLen() int { return n.L }

// NumClasses implements NeuralNetwork.
func (n *CNNNetwork) NumClasses() int { return n.K }
