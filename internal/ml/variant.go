package ml

import "fmt"

// Variant identifies a concrete training algorithm within one of the two
// model families (classical or neural).
type Variant string

const (
	VariantRandomForest     Variant = "random_forest"
	VariantGradientBoosting Variant = "gradient_boosting"
	VariantSVM              Variant = "svm"
	VariantLogisticReg      Variant = "logistic_regression"
	VariantKNN              Variant = "knn"
	VariantNaiveBayes       Variant = "naive_bayes"
	VariantLSTM             Variant = "lstm"
	VariantCNN              Variant = "cnn"
	VariantBERT             Variant = "bert"
)

var allVariants = []Variant{
	VariantRandomForest,
	VariantGradientBoosting,
	VariantSVM,
	VariantLogisticReg,
	VariantKNN,
	VariantNaiveBayes,
	VariantLSTM,
	VariantCNN,
	VariantBERT,
}

// ParseVariant validates a variant name coming from user input.
func ParseVariant(s string) (Variant, error) {
	for _, v := range allVariants {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// IsDeep reports whether the variant belongs to the neural family.
func (v Variant) IsDeep() bool {
	switch v {
	case VariantLSTM, VariantCNN, VariantBERT:
		return true
	}
	return false
}

// Family returns "neural" for deep variants and "classical" otherwise.
func (v Variant) Family() string {
	if v.IsDeep() {
		return "neural"
	}
	return "classical"
}
