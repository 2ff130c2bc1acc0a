package ml

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MultinomialNB is a multinomial naive Bayes classifier with Lidstone
// smoothing. It operates directly on the tf-idf matrix, which is
// non-negative by construction. The multinomial flavour is the deliberate
// resolution of the historical multinomial/Gaussian ambiguity and is
// recorded in package metadata.
type MultinomialNB struct {
	Alpha float64

	LogPrior []float64 // k
	LogProb  *Matrix   // k x d feature log-likelihoods
}

// NewMultinomialNB applies the variant default alpha=1.0.
func NewMultinomialNB(hp Hyperparams) *MultinomialNB {
	return &MultinomialNB{Alpha: hp.Float("alpha", 1.0)}
}

// Fit implements Estimator.
func (nb *MultinomialNB) Fit(X *mat.Dense, y []int, k int) error {
	n, d := X.Dims()
	counts := make([]float64, k)
	featureSum := NewMatrix(k, d)
	for i := 0; i < n; i++ {
		c := y[i]
		counts[c]++
		row := featureSum.Row(c)
		for j, v := range X.RawRowView(i) {
			row[j] += v
		}
	}

	nb.LogPrior = make([]float64, k)
	nb.LogProb = NewMatrix(k, d)
	for c := 0; c < k; c++ {
		nb.LogPrior[c] = math.Log(math.Max(counts[c], 1e-15) / float64(n))
		row := featureSum.Row(c)
		var total float64
		for _, v := range row {
			total += v + nb.Alpha
		}
		out := nb.LogProb.Row(c)
		for j, v := range row {
			out[j] = math.Log((v + nb.Alpha) / total)
		}
	}
	return nil
}

// PredictProba implements Estimator.
func (nb *MultinomialNB) PredictProba(X *mat.Dense) *mat.Dense {
	n, _ := X.Dims()
	k := len(nb.LogPrior)
	P := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		out := P.RawRowView(i)
		for c := 0; c < k; c++ {
			ll := nb.LogPrior[c]
			probs := nb.LogProb.Row(c)
			for j, v := range row {
				if v != 0 {
					ll += v * probs[j]
				}
			}
			out[c] = ll
		}
		softmaxInPlace(out)
	}
	return P
}

// NumFeatures implements Estimator.
func (nb *MultinomialNB) NumFeatures() int {
	if nb.LogProb == nil {
		return 0
	}
	return nb.LogProb.Cols
}

// NumClasses implements Estimator.
func (nb *MultinomialNB) NumClasses() int { return len(nb.LogPrior) }
