package ml

import (
	"math"
	"testing"
)

func TestEvaluatePerfectPredictions(t *testing.T) {
	enc, _ := FitLabelEncoder([]string{"a", "b"})
	yTrue := []int{0, 1, 0, 1}

	report := Evaluate(yTrue, yTrue, enc)

	for name, got := range map[string]float64{
		"accuracy":  report.Accuracy,
		"precision": report.Precision,
		"recall":    report.Recall,
		"f1":        report.F1,
	} {
		if got != 1 {
			t.Errorf("%s = %f, want 1", name, got)
		}
	}
}

func TestEvaluateZeroDivisionDefaultsToZero(t *testing.T) {
	enc, _ := FitLabelEncoder([]string{"a", "b", "c"})
	// Class 2 is never predicted and never true: its precision and recall
	// divide by zero.
	yTrue := []int{0, 1, 0, 1}
	yPred := []int{0, 0, 0, 1}

	report := Evaluate(yTrue, yPred, enc)

	c := report.PerClass["c"]
	if c.Precision != 0 || c.Recall != 0 || c.F1 != 0 {
		t.Errorf("metrics for absent class = %+v, want zeros", c)
	}
	if c.Support != 0 {
		t.Errorf("support for absent class = %d, want 0", c.Support)
	}
}

func TestEvaluateWeightedAverages(t *testing.T) {
	enc, _ := FitLabelEncoder([]string{"a", "b"})
	// 3 of class a (all right), 1 of class b (wrong).
	yTrue := []int{0, 0, 0, 1}
	yPred := []int{0, 0, 0, 0}

	report := Evaluate(yTrue, yPred, enc)

	if math.Abs(report.Accuracy-0.75) > 1e-12 {
		t.Errorf("accuracy = %f, want 0.75", report.Accuracy)
	}
	// recall(a)=1 weighted 0.75, recall(b)=0 weighted 0.25.
	if math.Abs(report.Recall-0.75) > 1e-12 {
		t.Errorf("weighted recall = %f, want 0.75", report.Recall)
	}
	a := report.PerClass["a"]
	if math.Abs(a.Precision-0.75) > 1e-12 {
		t.Errorf("precision(a) = %f, want 0.75", a.Precision)
	}
}
