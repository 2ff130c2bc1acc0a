package ml

import (
	"errors"
	"fmt"
	"testing"
)

// separableCorpus builds a two-class corpus with disjoint vocabularies, so
// any reasonable estimator separates it.
func separableCorpus(perClass int) []Sample {
	engineering := []string{"golang", "kubernetes", "microservice", "compiler", "backend", "deployment", "database", "latency"}
	medicine := []string{"patient", "diagnosis", "surgery", "clinical", "hospital", "treatment", "nursing", "pharmacy"}

	doc := func(pool []string, i int) string {
		text := ""
		for j := 0; j < 6; j++ {
			text += pool[(i+j)%len(pool)] + " "
		}
		return text
	}

	var samples []Sample
	for i := 0; i < perClass; i++ {
		samples = append(samples, Sample{Text: doc(engineering, i), Label: "engineering"})
		samples = append(samples, Sample{Text: doc(medicine, i), Label: "medicine"})
	}
	return samples
}

func TestTrainClassicalSeparableCorpus(t *testing.T) {
	variants := []Variant{
		VariantLogisticReg,
		VariantNaiveBayes,
		VariantKNN,
		VariantRandomForest,
	}

	samples := separableCorpus(15)
	for _, variant := range variants {
		t.Run(string(variant), func(t *testing.T) {
			model, result, err := TrainClassical(samples, ClassicalConfig{Variant: variant})
			if err != nil {
				t.Fatalf("TrainClassical: %v", err)
			}
			if !result.Success {
				t.Fatalf("result not successful: %s", result.Error)
			}
			if result.Accuracy < 0.9 {
				t.Errorf("accuracy = %f, want >= 0.9 on a separable corpus", result.Accuracy)
			}
			if result.FeatureCount == 0 {
				t.Error("feature count = 0")
			}
			if len(result.Classes) != 2 || result.Classes[0] != "engineering" || result.Classes[1] != "medicine" {
				t.Errorf("classes = %v, want sorted [engineering medicine]", result.Classes)
			}
			if result.SmallCorpus {
				t.Error("small-corpus flag set for a 30-sample corpus")
			}
			if result.TrainSize+result.TestSize != len(samples) {
				t.Errorf("train %d + test %d != %d", result.TrainSize, result.TestSize, len(samples))
			}
			if model.Estimator.NumClasses() != 2 {
				t.Errorf("estimator classes = %d, want 2", model.Estimator.NumClasses())
			}
		})
	}
}

func TestTrainClassicalAllVariantsFit(t *testing.T) {
	samples := separableCorpus(8)
	for _, variant := range []Variant{VariantSVM, VariantGradientBoosting} {
		t.Run(string(variant), func(t *testing.T) {
			_, result, err := TrainClassical(samples, ClassicalConfig{Variant: variant})
			if err != nil {
				t.Fatalf("TrainClassical: %v", err)
			}
			if !result.Success {
				t.Fatalf("result not successful: %s", result.Error)
			}
		})
	}
}

func TestTrainClassicalSmallCorpus(t *testing.T) {
	samples := []Sample{
		{Text: "golang backend services", Label: "engineering"},
		{Text: "kubernetes deployment pipeline", Label: "engineering"},
		{Text: "patient clinical care", Label: "medicine"},
		{Text: "surgery hospital ward", Label: "medicine"},
	}

	_, result, err := TrainClassical(samples, ClassicalConfig{Variant: VariantNaiveBayes})
	if err != nil {
		t.Fatalf("TrainClassical: %v", err)
	}
	if !result.SmallCorpus {
		t.Error("small-corpus flag not set for a 4-sample corpus")
	}
	if result.TrainSize != 4 || result.TestSize != 4 {
		t.Errorf("train/test = %d/%d, want 4/4 (train==test)", result.TrainSize, result.TestSize)
	}
}

func TestTrainClassicalSingleClass(t *testing.T) {
	samples := []Sample{
		{Text: "golang backend", Label: "engineering"},
		{Text: "kubernetes deployment", Label: "engineering"},
	}
	_, _, err := TrainClassical(samples, ClassicalConfig{Variant: VariantLogisticReg})
	if !errors.Is(err, ErrInsufficientClasses) {
		t.Fatalf("err = %v, want ErrInsufficientClasses", err)
	}
}

func TestTrainClassicalEmptyCorpus(t *testing.T) {
	_, _, err := TrainClassical(nil, ClassicalConfig{Variant: VariantKNN})
	if !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("err = %v, want ErrEmptyCorpus", err)
	}
}

func TestTrainClassicalRejectsNeuralVariant(t *testing.T) {
	samples := separableCorpus(3)
	_, _, err := TrainClassical(samples, ClassicalConfig{Variant: VariantLSTM})
	if !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("err = %v, want ErrUnknownVariant", err)
	}
}

func TestTrainClassicalProgressMonotonic(t *testing.T) {
	samples := separableCorpus(6)
	last := -1
	_, _, err := TrainClassical(samples, ClassicalConfig{
		Variant: VariantNaiveBayes,
		Progress: func(percent int, message string) {
			if percent < last {
				t.Errorf("progress went backwards: %d after %d (%s)", percent, last, message)
			}
			last = percent
		},
	})
	if err != nil {
		t.Fatalf("TrainClassical: %v", err)
	}
	if last != 100 {
		t.Errorf("final progress = %d, want 100", last)
	}
}

func ExampleParseVariant() {
	v, _ := ParseVariant("random_forest")
	fmt.Println(v.Family(), v.IsDeep())
	// Output: classical false
}
