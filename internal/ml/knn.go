package ml

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// KNN is a k-nearest-neighbours classifier over the stored training matrix.
// Probabilities are the (optionally distance-weighted) neighbour vote shares.
type KNN struct {
	NNeighbors int
	Weights    string // "uniform" or "distance"

	TrainX *Matrix
	TrainY []int
	K      int
}

// NewKNN applies the variant defaults: n_neighbors=5, weights uniform.
func NewKNN(hp Hyperparams) *KNN {
	return &KNN{
		NNeighbors: hp.Int("n_neighbors", 5),
		Weights:    hp.String("weights", "uniform"),
	}
}

// Fit implements Estimator.
func (knn *KNN) Fit(X *mat.Dense, y []int, k int) error {
	knn.TrainX = FromDense(X)
	knn.TrainY = append([]int(nil), y...)
	knn.K = k
	return nil
}

// PredictProba implements Estimator.
func (knn *KNN) PredictProba(X *mat.Dense) *mat.Dense {
	n, _ := X.Dims()
	P := mat.NewDense(n, knn.K, nil)

	nn := knn.NNeighbors
	if nn > knn.TrainX.Rows {
		nn = knn.TrainX.Rows
	}

	type neighbour struct {
		dist  float64
		class int
	}
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		neighbours := make([]neighbour, knn.TrainX.Rows)
		for j := 0; j < knn.TrainX.Rows; j++ {
			neighbours[j] = neighbour{dist: euclidean(row, knn.TrainX.Row(j)), class: knn.TrainY[j]}
		}
		sort.Slice(neighbours, func(a, b int) bool { return neighbours[a].dist < neighbours[b].dist })

		out := P.RawRowView(i)
		var total float64
		for _, nb := range neighbours[:nn] {
			w := 1.0
			if knn.Weights == "distance" {
				w = 1 / (nb.dist + 1e-10)
			}
			out[nb.class] += w
			total += w
		}
		for c := range out {
			out[c] /= total
		}
	}
	return P
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// NumFeatures implements Estimator.
func (knn *KNN) NumFeatures() int {
	if knn.TrainX == nil {
		return 0
	}
	return knn.TrainX.Cols
}

// NumClasses implements Estimator.
func (knn *KNN) NumClasses() int { return knn.K }
