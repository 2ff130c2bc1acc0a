package ml

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TreeNode is one node of a CART classification tree. Leaves carry the class
// distribution; internal nodes route on Feature <= Threshold.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
	Probs     []float64
}

type treeConfig struct {
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int // 0 means all features
	rng             *rand.Rand
}

func buildTree(X *mat.Dense, y []int, idx []int, k, depth int, cfg treeConfig) *TreeNode {
	counts := make([]float64, k)
	for _, i := range idx {
		counts[y[i]]++
	}
	if depth >= cfg.maxDepth || len(idx) < cfg.minSamplesSplit || isPure(counts) {
		return leafNode(counts)
	}

	feature, threshold, ok := bestSplit(X, y, idx, k, cfg)
	if !ok {
		return leafNode(counts)
	}

	var left, right []int
	for _, i := range idx {
		if X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leafNode(counts)
	}
	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      buildTree(X, y, left, k, depth+1, cfg),
		Right:     buildTree(X, y, right, k, depth+1, cfg),
	}
}

func leafNode(counts []float64) *TreeNode {
	var total float64
	for _, c := range counts {
		total += c
	}
	probs := make([]float64, len(counts))
	if total > 0 {
		for i, c := range counts {
			probs[i] = c / total
		}
	}
	return &TreeNode{Probs: probs}
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// bestSplit scans a feature subset for the gini-optimal threshold.
func bestSplit(X *mat.Dense, y []int, idx []int, k int, cfg treeConfig) (int, float64, bool) {
	_, d := X.Dims()
	features := featureSubset(d, cfg.maxFeatures, cfg.rng)

	bestGini := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, len(idx))
	leftCounts := make([]float64, k)
	rightCounts := make([]float64, k)

	for _, f := range features {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X.At(order[a], f) < X.At(order[b], f) })

		for c := range leftCounts {
			leftCounts[c] = 0
			rightCounts[c] = 0
		}
		for _, i := range order {
			rightCounts[y[i]]++
		}

		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftCounts[y[i]]++
			rightCounts[y[i]]--

			cur, next := X.At(i, f), X.At(order[pos+1], f)
			if next <= cur {
				continue
			}
			nl, nr := float64(pos+1), float64(len(order)-pos-1)
			g := (nl*gini(leftCounts, nl) + nr*gini(rightCounts, nr)) / float64(len(order))
			if g < bestGini {
				bestGini = g
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(counts []float64, n float64) float64 {
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

func featureSubset(d, maxFeatures int, rng *rand.Rand) []int {
	if maxFeatures <= 0 || maxFeatures >= d {
		all := make([]int, d)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := rng.Perm(d)
	subset := perm[:maxFeatures]
	sort.Ints(subset)
	return subset
}

// predictTree walks a sample down to its leaf distribution.
func predictTree(node *TreeNode, row []float64) []float64 {
	for node.Probs == nil {
		if row[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Probs
}

// RegNode is one node of a regression tree used by gradient boosting.
type RegNode struct {
	Feature   int
	Threshold float64
	Left      *RegNode
	Right     *RegNode
	Value     float64
	Leaf      bool
}

// buildRegTree fits a depth-limited regression tree to residuals r. Leaf
// values use the multiclass Newton step over the raw residuals.
func buildRegTree(X *mat.Dense, r []float64, idx []int, depth, maxDepth, minSamplesSplit, k int, rng *rand.Rand) *RegNode {
	if depth >= maxDepth || len(idx) < minSamplesSplit {
		return regLeaf(r, idx, k)
	}
	feature, threshold, ok := bestRegSplit(X, r, idx, rng)
	if !ok {
		return regLeaf(r, idx, k)
	}
	var left, right []int
	for _, i := range idx {
		if X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return regLeaf(r, idx, k)
	}
	return &RegNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      buildRegTree(X, r, left, depth+1, maxDepth, minSamplesSplit, k, rng),
		Right:     buildRegTree(X, r, right, depth+1, maxDepth, minSamplesSplit, k, rng),
	}
}

func regLeaf(r []float64, idx []int, k int) *RegNode {
	var num, den float64
	for _, i := range idx {
		num += r[i]
		den += math.Abs(r[i]) * (1 - math.Abs(r[i]))
	}
	value := 0.0
	if den > 1e-12 {
		value = (float64(k-1) / float64(k)) * num / den
	}
	return &RegNode{Value: value, Leaf: true}
}

func bestRegSplit(X *mat.Dense, r []float64, idx []int, rng *rand.Rand) (int, float64, bool) {
	_, d := X.Dims()
	features := featureSubset(d, 0, rng)

	var total float64
	for _, i := range idx {
		total += r[i]
	}

	bestScore := math.Inf(-1)
	bestFeature, bestThreshold := -1, 0.0
	order := make([]int, len(idx))

	for _, f := range features {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X.At(order[a], f) < X.At(order[b], f) })

		var leftSum float64
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftSum += r[i]
			cur, next := X.At(i, f), X.At(order[pos+1], f)
			if next <= cur {
				continue
			}
			nl := float64(pos + 1)
			nr := float64(len(order) - pos - 1)
			rightSum := total - leftSum
			// Variance-reduction proxy: weighted squared means.
			score := leftSum*leftSum/nl + rightSum*rightSum/nr
			if score > bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func predictRegTree(node *RegNode, row []float64) float64 {
	for !node.Leaf {
		if row[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}
