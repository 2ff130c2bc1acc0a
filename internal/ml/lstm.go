package ml

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LSTMParams holds one LSTM layer's weights. Gate order in the stacked
// dimension is input, forget, cell, output.
type LSTMParams struct {
	In, H int
	Wx    *Matrix // 4H x In
	Wh    *Matrix // 4H x H
	B     []float64
}

func newLSTMParams(rng *rand.Rand, in, h int) *LSTMParams {
	p := &LSTMParams{
		In: in,
		H:  h,
		Wx: glorot(rng, 4*h, in, in, h),
		Wh: glorot(rng, 4*h, h, h, h),
		B:  make([]float64, 4*h),
	}
	// Forget-gate bias starts at 1 so early training retains state.
	for i := h; i < 2*h; i++ {
		p.B[i] = 1
	}
	return p
}

type lstmCache struct {
	xs    [][]float64
	hs    [][]float64 // hs[t] is the state after step t
	cs    [][]float64
	gates [][]float64 // post-activation i,f,g,o per step
	tanhC [][]float64
}

// lstmForward runs the layer over a sequence, returning all hidden states.
func lstmForward(p *LSTMParams, xs [][]float64) *lstmCache {
	T := len(xs)
	h := p.H
	cache := &lstmCache{
		xs:    xs,
		hs:    make([][]float64, T),
		cs:    make([][]float64, T),
		gates: make([][]float64, T),
		tanhC: make([][]float64, T),
	}
	hPrev := make([]float64, h)
	cPrev := make([]float64, h)
	zx := make([]float64, 4*h)
	zh := make([]float64, 4*h)

	for t := 0; t < T; t++ {
		matvec(p.Wx, xs[t], zx)
		matvec(p.Wh, hPrev, zh)
		gates := make([]float64, 4*h)
		for j := 0; j < 4*h; j++ {
			gates[j] = zx[j] + zh[j] + p.B[j]
		}
		ct := make([]float64, h)
		ht := make([]float64, h)
		tc := make([]float64, h)
		for j := 0; j < h; j++ {
			i := sigmoid(gates[j])
			f := sigmoid(gates[h+j])
			g := math.Tanh(gates[2*h+j])
			o := sigmoid(gates[3*h+j])
			gates[j], gates[h+j], gates[2*h+j], gates[3*h+j] = i, f, g, o
			ct[j] = f*cPrev[j] + i*g
			tc[j] = math.Tanh(ct[j])
			ht[j] = o * tc[j]
		}
		cache.gates[t] = gates
		cache.cs[t] = ct
		cache.tanhC[t] = tc
		cache.hs[t] = ht
		hPrev, cPrev = ht, ct
	}
	return cache
}

// lstmBackward backpropagates dhs (one gradient per hidden state, nil rows
// allowed) through time, accumulating parameter gradients and returning
// gradients w.r.t. the layer inputs.
func lstmBackward(p *LSTMParams, cache *lstmCache, dhs [][]float64, gWx, gWh, gB []float64) [][]float64 {
	T := len(cache.xs)
	h := p.H
	dxs := make([][]float64, T)
	dhNext := make([]float64, h)
	dcNext := make([]float64, h)
	dz := make([]float64, 4*h)
	zero := make([]float64, h)

	for t := T - 1; t >= 0; t-- {
		gates := cache.gates[t]
		tc := cache.tanhC[t]
		cPrev, hPrev := zero, zero
		if t > 0 {
			cPrev = cache.cs[t-1]
			hPrev = cache.hs[t-1]
		}

		for j := 0; j < h; j++ {
			dh := dhNext[j]
			if dhs[t] != nil {
				dh += dhs[t][j]
			}
			i, f, g, o := gates[j], gates[h+j], gates[2*h+j], gates[3*h+j]
			do := dh * tc[j]
			dc := dh*o*(1-tc[j]*tc[j]) + dcNext[j]
			di := dc * g
			df := dc * cPrev[j]
			dg := dc * i
			dcNext[j] = dc * f

			dz[j] = di * i * (1 - i)
			dz[h+j] = df * f * (1 - f)
			dz[2*h+j] = dg * (1 - g*g)
			dz[3*h+j] = do * o * (1 - o)
		}

		dx := make([]float64, p.In)
		x := cache.xs[t]
		for r := 0; r < 4*h; r++ {
			d := dz[r]
			if d == 0 {
				continue
			}
			gB[r] += d
			wxRow := p.Wx.Row(r)
			gxRow := gWx[r*p.In : (r+1)*p.In]
			for j := 0; j < p.In; j++ {
				gxRow[j] += d * x[j]
				dx[j] += d * wxRow[j]
			}
			ghRow := gWh[r*h : (r+1)*h]
			for j := 0; j < h; j++ {
				ghRow[j] += d * hPrev[j]
			}
		}
		for j := 0; j < h; j++ {
			var sum float64
			for r := 0; r < 4*h; r++ {
				sum += p.Wh.At(r, j) * dz[r]
			}
			dhNext[j] = sum
		}
		dxs[t] = dx
	}
	return dxs
}

// LSTMNetwork is the lstm variant: embedding(V,128) feeding two stacked LSTM
// layers (128 then 64, input dropout 0.2), a relu dense layer with dropout
// 0.5 and a softmax head.
type LSTMNetwork struct {
	V, D, L, K int
	Seed       int64

	Emb  *Matrix
	L1   *LSTMParams
	L2   *LSTMParams
	W1   *Matrix // 64 x 64
	B1   []float64
	WOut *Matrix // K x 64
	BOut []float64

	st *netState
}

// netState carries the transient training machinery (gradients, optimiser,
// dropout rng); it never crosses the gob boundary.
type netState struct {
	rng    *rand.Rand
	opt    *adamOpt
	params [][]float64
	grads  [][]float64
}

func newNetState(seed int64, lr float64, params [][]float64) *netState {
	grads := make([][]float64, len(params))
	for i, p := range params {
		grads[i] = make([]float64, len(p))
	}
	return &netState{
		rng:    rand.New(rand.NewSource(seed)),
		opt:    newAdam(lr, params),
		params: params,
		grads:  grads,
	}
}

// NewLSTMNetwork builds the lstm architecture for vocab V, length L and K
// classes.
func NewLSTMNetwork(v, l, k int, seed int64) *LSTMNetwork {
	rng := rand.New(rand.NewSource(seed))
	const d, h1, h2, dense = 128, 128, 64, 64
	return &LSTMNetwork{
		V: v, D: d, L: l, K: k, Seed: seed,
		Emb:  glorot(rng, v, d, v, d),
		L1:   newLSTMParams(rng, d, h1),
		L2:   newLSTMParams(rng, h1, h2),
		W1:   glorot(rng, dense, h2, h2, dense),
		B1:   make([]float64, dense),
		WOut: glorot(rng, k, dense, dense, k),
		BOut: make([]float64, k),
	}
}

func (n *LSTMNetwork) state() *netState {
	if n.st == nil {
		n.st = newNetState(n.Seed+1, 1e-3, [][]float64{
			n.Emb.Data,
			n.L1.Wx.Data, n.L1.Wh.Data, n.L1.B,
			n.L2.Wx.Data, n.L2.Wh.Data, n.L2.B,
			n.W1.Data, n.B1,
			n.WOut.Data, n.BOut,
		})
	}
	return n.st
}

// Gradient slot indices follow the state() parameter order.
const (
	lstmGEmb = iota
	lstmGL1Wx
	lstmGL1Wh
	lstmGL1B
	lstmGL2Wx
	lstmGL2Wh
	lstmGL2B
	lstmGW1
	lstmGB1
	lstmGWOut
	lstmGBOut
)

type lstmFwd struct {
	c1, c2         *lstmCache
	masks1, masks2 [][]float64 // input dropout masks when training
	hidden         []float64
	hiddenMask     []float64
	probs          []float64
}

func (n *LSTMNetwork) forward(ids []int, training bool) *lstmFwd {
	st := n.state()
	T := effLen(ids)
	f := &lstmFwd{}

	xs := make([][]float64, T)
	if training {
		f.masks1 = make([][]float64, T)
	}
	for t := 0; t < T; t++ {
		x := append([]float64(nil), n.Emb.Row(ids[t])...)
		if training {
			f.masks1[t] = dropoutMask(st.rng, len(x), 0.2)
			applyMask(x, f.masks1[t])
		}
		xs[t] = x
	}
	f.c1 = lstmForward(n.L1, xs)

	xs2 := f.c1.hs
	if training {
		f.masks2 = make([][]float64, T)
		xs2 = make([][]float64, T)
		for t := 0; t < T; t++ {
			x := append([]float64(nil), f.c1.hs[t]...)
			f.masks2[t] = dropoutMask(st.rng, len(x), 0.2)
			applyMask(x, f.masks2[t])
			xs2[t] = x
		}
	}
	f.c2 = lstmForward(n.L2, xs2)

	f.hidden = affine(n.W1, n.B1, f.c2.hs[T-1])
	reluInPlace(f.hidden)
	if training {
		f.hiddenMask = dropoutMask(st.rng, len(f.hidden), 0.5)
		applyMask(f.hidden, f.hiddenMask)
	}
	f.probs = affine(n.WOut, n.BOut, f.hidden)
	softmaxInPlace(f.probs)
	return f
}

// TrainBatch implements NeuralNetwork: forward/backward over the batch, one
// Adam step, mean loss returned.
func (n *LSTMNetwork) TrainBatch(ids, _ [][]int, labels []int) float64 {
	st := n.state()
	g := st.grads
	var loss float64

	for s := range ids {
		f := n.forward(ids[s], true)
		loss += crossEntropy(f.probs, labels[s])

		dOut := append([]float64(nil), f.probs...)
		dOut[labels[s]]--
		dHidden := affineBack(n.WOut, f.hidden, dOut, g[lstmGWOut], g[lstmGBOut])
		applyMask(dHidden, f.hiddenMask)
		reluBack(f.hidden, dHidden)

		T := len(f.c2.hs)
		dLast := affineBack(n.W1, f.c2.hs[T-1], dHidden, g[lstmGW1], g[lstmGB1])

		dhs2 := make([][]float64, T)
		dhs2[T-1] = dLast
		dhs1 := lstmBackward(n.L2, f.c2, dhs2, g[lstmGL2Wx], g[lstmGL2Wh], g[lstmGL2B])
		for t := range dhs1 {
			applyMask(dhs1[t], f.masks2[t])
		}
		dxs := lstmBackward(n.L1, f.c1, dhs1, g[lstmGL1Wx], g[lstmGL1Wh], g[lstmGL1B])
		for t, dx := range dxs {
			applyMask(dx, f.masks1[t])
			row := g[lstmGEmb][ids[s][t]*n.D : (ids[s][t]+1)*n.D]
			for j, v := range dx {
				row[j] += v
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
func (n *LSTMNetwork) PredictProba(ids, _ [][]int) *mat.Dense {
	P := mat.NewDense(len(ids), n.K, nil)
	for i, seq := range ids {
		f := n.forward(seq, false)
		copy(P.RawRowView(i), f.probs)
	}
	return P
}

// InputLen implements NeuralNetwork.
func (n *LSTMNetwork) InputLen() int { return n.L }

// NumClasses implements NeuralNetwork.
func (n *LSTMNetwork) NumClasses() int { return n.K }
