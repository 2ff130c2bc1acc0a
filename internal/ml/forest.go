package ml

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// RandomForest averages the leaf distributions of bootstrap-sampled CART
// trees, each restricted to a sqrt(d) feature subset per split.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	Seed            int64

	Trees    []*TreeNode
	Features int
	K        int
}

// NewRandomForest applies the variant defaults: n_estimators=100,
// max_depth=10, min_samples_split=2, random_state=42.
func NewRandomForest(hp Hyperparams) *RandomForest {
	return &RandomForest{
		NEstimators:     hp.Int("n_estimators", 100),
		MaxDepth:        hp.Int("max_depth", 10),
		MinSamplesSplit: hp.Int("min_samples_split", 2),
		Seed:            int64(hp.Int("random_state", 42)),
	}
}

// Fit implements Estimator.
func (f *RandomForest) Fit(X *mat.Dense, y []int, k int) error {
	n, d := X.Dims()
	f.Features = d
	f.K = k
	f.Trees = make([]*TreeNode, f.NEstimators)

	rng := rand.New(rand.NewSource(f.Seed))
	maxFeatures := int(math.Sqrt(float64(d)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	for t := 0; t < f.NEstimators; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		cfg := treeConfig{
			maxDepth:        f.MaxDepth,
			minSamplesSplit: f.MinSamplesSplit,
			maxFeatures:     maxFeatures,
			rng:             rng,
		}
		f.Trees[t] = buildTree(X, y, sample, k, 0, cfg)
	}
	return nil
}

// PredictProba implements Estimator.
func (f *RandomForest) PredictProba(X *mat.Dense) *mat.Dense {
	n, _ := X.Dims()
	P := mat.NewDense(n, f.K, nil)
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		out := P.RawRowView(i)
		for _, tree := range f.Trees {
			probs := predictTree(tree, row)
			for c, p := range probs {
				out[c] += p
			}
		}
		for c := range out {
			out[c] /= float64(len(f.Trees))
		}
	}
	return P
}

// NumFeatures implements Estimator.
func (f *RandomForest) NumFeatures() int { return f.Features }

// NumClasses implements Estimator.
func (f *RandomForest) NumClasses() int { return f.K }
