package ml

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Estimator is the single polymorphic contract shared by every classical
// variant: fit on a feature matrix with integer labels, then produce a K-way
// probability distribution per row.
type Estimator interface {
	// Fit trains on X (n x d) with labels y in [0, k).
	Fit(X *mat.Dense, y []int, k int) error
	// PredictProba returns an n x k matrix of class probabilities.
	PredictProba(X *mat.Dense) *mat.Dense
	// NumFeatures reports the fitted input dimensionality.
	NumFeatures() int
	// NumClasses reports the fitted output dimensionality.
	NumClasses() int
}

func init() {
	// Concrete estimators and networks cross the gob boundary behind
	// interfaces, so every serialisable type registers here.
	gob.Register(&RandomForest{})
	gob.Register(&GradientBoosting{})
	gob.Register(&SVM{})
	gob.Register(&LogisticRegression{})
	gob.Register(&KNN{})
	gob.Register(&MultinomialNB{})
	gob.Register(&LSTMNetwork{})
	gob.Register(&CNNNetwork{})
	gob.Register(&BERTNetwork{})
}

// Hyperparams carries caller-supplied hyperparameters. Constructors read the
// keys they recognise and ignore the rest.
type Hyperparams map[string]any

// Float reads a numeric key, tolerating JSON's float64 and plain ints.
func (h Hyperparams) Float(key string, def float64) float64 {
	switch v := h[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// Int reads an integer key.
func (h Hyperparams) Int(key string, def int) int {
	switch v := h[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// String reads a string key.
func (h Hyperparams) String(key, def string) string {
	if v, ok := h[key].(string); ok {
		return v
	}
	return def
}

// NewEstimator instantiates the estimator for a classical variant with the
// variant's recognised hyperparameters applied over its defaults.
func NewEstimator(variant Variant, hp Hyperparams) (Estimator, error) {
	if hp == nil {
		hp = Hyperparams{}
	}
	switch variant {
	case VariantRandomForest:
		return NewRandomForest(hp), nil
	case VariantGradientBoosting:
		return NewGradientBoosting(hp), nil
	case VariantSVM:
		return NewSVM(hp), nil
	case VariantLogisticReg:
		return NewLogisticRegression(hp), nil
	case VariantKNN:
		return NewKNN(hp), nil
	case VariantNaiveBayes:
		return NewMultinomialNB(hp), nil
	}
	return nil, fmt.Errorf("%w: %q is not a classical variant", ErrUnknownVariant, variant)
}

// argmaxRow returns the index and value of the row maximum.
func argmaxRow(row []float64) (int, float64) {
	best, bestVal := 0, row[0]
	for i, v := range row[1:] {
		if v > bestVal {
			best, bestVal = i+1, v
		}
	}
	return best, bestVal
}
