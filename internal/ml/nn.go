package ml

import (
	"math"
	"math/rand"
)

// Shared building blocks for the hand-written networks: Glorot init, dense
// affine forward/backward, inverted dropout and an Adam optimiser over flat
// parameter slices.

func glorot(rng *rand.Rand, rows, cols, fanIn, fanOut int) *Matrix {
	m := NewMatrix(rows, cols)
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range m.Data {
		m.Data[i] = (rng.Float64()*2 - 1) * limit
	}
	return m
}

// matvec computes out = W x for a rows x cols matrix.
func matvec(W *Matrix, x, out []float64) {
	for i := 0; i < W.Rows; i++ {
		row := W.Row(i)
		var sum float64
		for j, v := range x {
			sum += row[j] * v
		}
		out[i] = sum
	}
}

// affine computes W x + b.
func affine(W *Matrix, b, x []float64) []float64 {
	out := make([]float64, W.Rows)
	matvec(W, x, out)
	for i := range out {
		out[i] += b[i]
	}
	return out
}

// affineBack accumulates dW += dy ⊗ x and db += dy, returning dx.
func affineBack(W *Matrix, x, dy, gW, gB []float64) []float64 {
	dx := make([]float64, W.Cols)
	for i := 0; i < W.Rows; i++ {
		row := W.Row(i)
		gRow := gW[i*W.Cols : (i+1)*W.Cols]
		d := dy[i]
		gB[i] += d
		for j := range row {
			gRow[j] += d * x[j]
			dx[j] += d * row[j]
		}
	}
	return dx
}

func reluInPlace(x []float64) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

// reluBack zeroes gradient where the activation was clipped.
func reluBack(activated, dy []float64) {
	for i := range dy {
		if activated[i] <= 0 {
			dy[i] = 0
		}
	}
}

// dropoutMask returns an inverted-dropout mask (0 or 1/(1-rate)).
func dropoutMask(rng *rand.Rand, n int, rate float64) []float64 {
	mask := make([]float64, n)
	keep := 1 - rate
	for i := range mask {
		if rng.Float64() < keep {
			mask[i] = 1 / keep
		}
	}
	return mask
}

func applyMask(x, mask []float64) {
	for i := range x {
		x[i] *= mask[i]
	}
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

// crossEntropy is the negative log-likelihood of the true label.
func crossEntropy(probs []float64, label int) float64 {
	return -math.Log(math.Max(probs[label], 1e-15))
}

// adamOpt is a standard Adam optimiser over parallel flat slices.
type adamOpt struct {
	lr, b1, b2, eps float64
	t               int
	m, v            [][]float64
}

func newAdam(lr float64, params [][]float64) *adamOpt {
	o := &adamOpt{lr: lr, b1: 0.9, b2: 0.999, eps: 1e-8}
	o.m = make([][]float64, len(params))
	o.v = make([][]float64, len(params))
	for i, p := range params {
		o.m[i] = make([]float64, len(p))
		o.v[i] = make([]float64, len(p))
	}
	return o
}

// step applies one Adam update; grads are zeroed afterwards.
func (o *adamOpt) step(params, grads [][]float64) {
	o.t++
	c1 := 1 - math.Pow(o.b1, float64(o.t))
	c2 := 1 - math.Pow(o.b2, float64(o.t))
	for i, p := range params {
		g := grads[i]
		m, v := o.m[i], o.v[i]
		for j := range p {
			m[j] = o.b1*m[j] + (1-o.b1)*g[j]
			v[j] = o.b2*v[j] + (1-o.b2)*g[j]*g[j]
			p[j] -= o.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + o.eps)
			g[j] = 0
		}
	}
}

// effLen is the effective (unpadded) length of an index sequence.
func effLen(ids []int) int {
	n := len(ids)
	for n > 0 && ids[n-1] == PadIndex {
		n--
	}
	if n == 0 {
		n = 1
	}
	return n
}
