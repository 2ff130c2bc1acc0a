package ml

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// StratifiedSplit partitions sample indices into train and test sets,
// preserving per-class proportions. Classes too small to split keep all of
// their samples in the training set. The seed fixes the shuffle for
// reproducible runs.
func StratifiedSplit(y []int, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	byClass := make(map[int][]int)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(math.Round(testFraction * float64(len(idx))))
		if nTest >= len(idx) {
			nTest = len(idx) - 1
		}
		if nTest < 1 && len(idx) > 1 {
			nTest = 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// subsetDense gathers the given rows of X into a new matrix.
func subsetDense(X *mat.Dense, idx []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for i, j := range idx {
		copy(out.RawRowView(i), X.RawRowView(j))
	}
	return out
}

// takeSeqs gathers the given rows of a sequence batch.
func takeSeqs(seqs [][]int, idx []int) [][]int {
	out := make([][]int, len(idx))
	for i, j := range idx {
		out[i] = seqs[j]
	}
	return out
}

// takeInts gathers the given positions of y.
func takeInts(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
