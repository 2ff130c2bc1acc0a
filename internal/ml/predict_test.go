package ml

import (
	"errors"
	"math"
	"testing"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		confidence float64
		want       ConfidenceLevel
	}{
		{0.95, LevelHigh},
		{0.81, LevelHigh},
		{0.8, LevelMedium},
		{0.7, LevelMedium},
		{0.61, LevelMedium},
		{0.6, LevelLow},
		{0.3, LevelLow},
		{0, LevelLow},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.confidence); got != tt.want {
			t.Errorf("LevelFor(%f) = %s, want %s", tt.confidence, got, tt.want)
		}
	}
}

func TestPredictTextDistribution(t *testing.T) {
	samples := separableCorpus(10)
	model, _, err := TrainClassical(samples, ClassicalConfig{Variant: VariantLogisticReg})
	if err != nil {
		t.Fatalf("TrainClassical: %v", err)
	}

	pred, err := model.PredictText("golang kubernetes backend latency")
	if err != nil {
		t.Fatalf("PredictText: %v", err)
	}

	if pred.Class != "engineering" {
		t.Errorf("predicted class = %q, want engineering", pred.Class)
	}
	if pred.Level != LevelFor(pred.Confidence) {
		t.Errorf("level %s inconsistent with confidence %f", pred.Level, pred.Confidence)
	}
	if len(pred.Distribution) != 2 {
		t.Fatalf("distribution has %d entries, want 2", len(pred.Distribution))
	}
	if pred.Distribution[0].Class != pred.Class {
		t.Errorf("distribution head = %q, want winning class %q", pred.Distribution[0].Class, pred.Class)
	}
	if pred.Distribution[0].Probability != pred.Confidence {
		t.Errorf("distribution head probability %f != confidence %f", pred.Distribution[0].Probability, pred.Confidence)
	}

	var sum float64
	prev := math.Inf(1)
	for _, entry := range pred.Distribution {
		if entry.Probability > prev {
			t.Errorf("distribution not sorted: %f after %f", entry.Probability, prev)
		}
		prev = entry.Probability
		sum += entry.Probability
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("distribution sums to %f, want 1", sum)
	}
}

func TestPredictTextEmptyInput(t *testing.T) {
	samples := separableCorpus(5)
	model, _, err := TrainClassical(samples, ClassicalConfig{Variant: VariantNaiveBayes})
	if err != nil {
		t.Fatalf("TrainClassical: %v", err)
	}

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := model.PredictText(text); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("PredictText(%q) err = %v, want ErrEmptyInput", text, err)
		}
	}
}
