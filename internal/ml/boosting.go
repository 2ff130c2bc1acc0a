package ml

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// GradientBoosting is a multiclass gradient-boosted ensemble: each round fits
// one regression tree per class to the softmax pseudo-residuals and adds its
// shrunk output to the raw scores.
type GradientBoosting struct {
	NEstimators  int
	LearningRate float64
	MaxDepth     int
	Seed         int64

	Rounds   [][]*RegNode // [round][class]
	Features int
	K        int
}

// NewGradientBoosting applies the variant defaults: n_estimators=100,
// learning_rate=0.1, max_depth=3, random_state=42.
func NewGradientBoosting(hp Hyperparams) *GradientBoosting {
	return &GradientBoosting{
		NEstimators:  hp.Int("n_estimators", 100),
		LearningRate: hp.Float("learning_rate", 0.1),
		MaxDepth:     hp.Int("max_depth", 3),
		Seed:         int64(hp.Int("random_state", 42)),
	}
}

// Fit implements Estimator.
func (g *GradientBoosting) Fit(X *mat.Dense, y []int, k int) error {
	n, d := X.Dims()
	g.Features = d
	g.K = k
	g.Rounds = nil

	rng := rand.New(rand.NewSource(g.Seed))
	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, k)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	residual := make([]float64, n)
	probs := make([]float64, k)

	for round := 0; round < g.NEstimators; round++ {
		trees := make([]*RegNode, k)
		for c := 0; c < k; c++ {
			for i := 0; i < n; i++ {
				copy(probs, scores[i])
				softmaxInPlace(probs)
				target := 0.0
				if y[i] == c {
					target = 1
				}
				residual[i] = target - probs[c]
			}
			trees[c] = buildRegTree(X, residual, idx, 0, g.MaxDepth, 2, k, rng)
		}
		for i := 0; i < n; i++ {
			row := X.RawRowView(i)
			for c := 0; c < k; c++ {
				scores[i][c] += g.LearningRate * predictRegTree(trees[c], row)
			}
		}
		g.Rounds = append(g.Rounds, trees)
	}
	return nil
}

// PredictProba implements Estimator.
func (g *GradientBoosting) PredictProba(X *mat.Dense) *mat.Dense {
	n, _ := X.Dims()
	P := mat.NewDense(n, g.K, nil)
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		out := P.RawRowView(i)
		for _, trees := range g.Rounds {
			for c, tree := range trees {
				out[c] += g.LearningRate * predictRegTree(tree, row)
			}
		}
		softmaxInPlace(out)
	}
	return P
}

// NumFeatures implements Estimator.
func (g *GradientBoosting) NumFeatures() int { return g.Features }

// NumClasses implements Estimator.
func (g *GradientBoosting) NumClasses() int { return g.K }
