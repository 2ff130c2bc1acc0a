package ml

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// SVM is a one-vs-rest kernel support vector machine trained with the
// kernelised Pegasos solver. Probabilities come from a softmax over the
// per-class decision margins.
type SVM struct {
	C      float64
	Kernel string
	Gamma  string
	Degree int
	Coef0  float64
	Seed   int64

	SupportX   *Matrix // training samples, n x d
	Coef       *Matrix // per-class dual coefficients, k x n
	GammaValue float64
	K          int
}

// NewSVM applies the variant defaults: C=1.0, kernel rbf, gamma scale,
// probability true, random_state 42.
func NewSVM(hp Hyperparams) *SVM {
	return &SVM{
		C:      hp.Float("C", 1.0),
		Kernel: hp.String("kernel", "rbf"),
		Gamma:  hp.String("gamma", "scale"),
		Degree: hp.Int("degree", 3),
		Coef0:  hp.Float("coef0", 0),
		Seed:   int64(hp.Int("random_state", 42)),
	}
}

// Fit implements Estimator.
func (s *SVM) Fit(X *mat.Dense, y []int, k int) error {
	n, _ := X.Dims()
	s.K = k
	s.SupportX = FromDense(X)
	s.GammaValue = s.resolveGamma(X)

	// Precomputed Gram matrix; corpora here are small.
	gram := make([][]float64, n)
	for i := range gram {
		gram[i] = make([]float64, n)
		for j := 0; j <= i; j++ {
			v := s.kernel(s.SupportX.Row(i), s.SupportX.Row(j))
			gram[i][j] = v
			gram[j][i] = v
		}
	}

	lambda := 1 / (s.C * float64(n))
	iters := 50 * n
	if iters < 2000 {
		iters = 2000
	}
	rng := rand.New(rand.NewSource(s.Seed))

	s.Coef = NewMatrix(k, n)
	alphas := make([]float64, n)
	for c := 0; c < k; c++ {
		for i := range alphas {
			alphas[i] = 0
		}
		for t := 1; t <= iters; t++ {
			i := rng.Intn(n)
			yi := -1.0
			if y[i] == c {
				yi = 1
			}
			var f float64
			for j, a := range alphas {
				if a == 0 {
					continue
				}
				yj := -1.0
				if y[j] == c {
					yj = 1
				}
				f += a * yj * gram[j][i]
			}
			f /= lambda * float64(t)
			if yi*f < 1 {
				alphas[i]++
			}
		}
		row := s.Coef.Row(c)
		for j, a := range alphas {
			yj := -1.0
			if y[j] == c {
				yj = 1
			}
			row[j] = a * yj / (lambda * float64(iters))
		}
	}
	return nil
}

func (s *SVM) resolveGamma(X *mat.Dense) float64 {
	n, d := X.Dims()
	switch s.Gamma {
	case "auto":
		return 1 / float64(d)
	case "scale", "":
		var mean, sq float64
		total := float64(n * d)
		for i := 0; i < n; i++ {
			for _, v := range X.RawRowView(i) {
				mean += v
				sq += v * v
			}
		}
		mean /= total
		variance := sq/total - mean*mean
		if variance <= 0 {
			return 1 / float64(d)
		}
		return 1 / (float64(d) * variance)
	default:
		return 1 / float64(d)
	}
}

func (s *SVM) kernel(a, b []float64) float64 {
	switch s.Kernel {
	case "linear":
		return dot(a, b)
	case "poly":
		return math.Pow(s.GammaValue*dot(a, b)+s.Coef0, float64(s.Degree))
	case "sigmoid":
		return math.Tanh(s.GammaValue*dot(a, b) + s.Coef0)
	default: // rbf
		var sum float64
		for i := range a {
			diff := a[i] - b[i]
			sum += diff * diff
		}
		return math.Exp(-s.GammaValue * sum)
	}
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// PredictProba implements Estimator.
func (s *SVM) PredictProba(X *mat.Dense) *mat.Dense {
	n, _ := X.Dims()
	P := mat.NewDense(n, s.K, nil)
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		out := P.RawRowView(i)
		for j := 0; j < s.SupportX.Rows; j++ {
			kv := s.kernel(s.SupportX.Row(j), row)
			for c := 0; c < s.K; c++ {
				out[c] += s.Coef.At(c, j) * kv
			}
		}
		softmaxInPlace(out)
	}
	return P
}

// NumFeatures implements Estimator.
func (s *SVM) NumFeatures() int {
	if s.SupportX == nil {
		return 0
	}
	return s.SupportX.Cols
}

// NumClasses implements Estimator.
func (s *SVM) NumClasses() int { return s.K }
