package ml

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is a multinomial (softmax) classifier trained by
// full-batch gradient descent with l2 regularisation strength 1/C.
type LogisticRegression struct {
	C       float64
	MaxIter int
	Solver  string
	Seed    int64

	W *Matrix   // d x k
	B []float64 // k
}

// NewLogisticRegression applies the variant defaults: C=1.0, solver lbfgs,
// max_iter 1000, random_state 42.
func NewLogisticRegression(hp Hyperparams) *LogisticRegression {
	return &LogisticRegression{
		C:       hp.Float("C", 1.0),
		MaxIter: hp.Int("max_iter", 1000),
		Solver:  hp.String("solver", "lbfgs"),
		Seed:    int64(hp.Int("random_state", 42)),
	}
}

// Fit implements Estimator.
func (l *LogisticRegression) Fit(X *mat.Dense, y []int, k int) error {
	n, d := X.Dims()
	l.W = NewMatrix(d, k)
	l.B = make([]float64, k)

	lambda := 0.0
	if l.C > 0 {
		lambda = 1 / (l.C * float64(n))
	}
	lr := 0.5
	prevLoss := math.Inf(1)

	grad := mat.NewDense(d, k, nil)
	for iter := 0; iter < l.MaxIter; iter++ {
		P := l.scores(X)
		loss := 0.0
		for i := 0; i < n; i++ {
			row := P.RawRowView(i)
			softmaxInPlace(row)
			loss -= math.Log(math.Max(row[y[i]], 1e-15))
			row[y[i]] -= 1 // P - Y
		}
		loss /= float64(n)

		// dW = X^T (P - Y) / n + lambda W
		grad.Mul(X.T(), P)
		grad.Scale(1/float64(n), grad)
		for i := 0; i < d*k; i++ {
			grad.RawMatrix().Data[i] += lambda * l.W.Data[i]
			l.W.Data[i] -= lr * grad.RawMatrix().Data[i]
		}
		db := make([]float64, k)
		for i := 0; i < n; i++ {
			row := P.RawRowView(i)
			for c := 0; c < k; c++ {
				db[c] += row[c]
			}
		}
		for c := 0; c < k; c++ {
			l.B[c] -= lr * db[c] / float64(n)
		}

		if math.Abs(prevLoss-loss) < 1e-7 {
			break
		}
		prevLoss = loss
	}
	return nil
}

func (l *LogisticRegression) scores(X *mat.Dense) *mat.Dense {
	n, _ := X.Dims()
	S := mat.NewDense(n, len(l.B), nil)
	S.Mul(X, l.W.Dense())
	for i := 0; i < n; i++ {
		row := S.RawRowView(i)
		for c := range row {
			row[c] += l.B[c]
		}
	}
	return S
}

// PredictProba implements Estimator.
func (l *LogisticRegression) PredictProba(X *mat.Dense) *mat.Dense {
	P := l.scores(X)
	n, _ := P.Dims()
	for i := 0; i < n; i++ {
		softmaxInPlace(P.RawRowView(i))
	}
	return P
}

// NumFeatures implements Estimator.
func (l *LogisticRegression) NumFeatures() int {
	if l.W == nil {
		return 0
	}
	return l.W.Rows
}

// NumClasses implements Estimator.
func (l *LogisticRegression) NumClasses() int { return len(l.B) }

// softmaxInPlace replaces a score row by its softmax, guarding overflow.
func softmaxInPlace(row []float64) {
	max := row[0]
	for _, v := range row[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range row {
		row[i] = math.Exp(v - max)
		sum += row[i]
	}
	for i := range row {
		row[i] /= sum
	}
}
