package ml

import (
	"sort"
	"strings"
)

// ConfidenceLevel discretises the winning probability.
type ConfidenceLevel string

const (
	LevelLow    ConfidenceLevel = "Low"
	LevelMedium ConfidenceLevel = "Medium"
	LevelHigh   ConfidenceLevel = "High"
)

// LevelFor maps a confidence to its level: >0.8 High, (0.6, 0.8] Medium,
// otherwise Low.
func LevelFor(confidence float64) ConfidenceLevel {
	switch {
	case confidence > 0.8:
		return LevelHigh
	case confidence > 0.6:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ClassProbability is one entry of the ranked distribution.
type ClassProbability struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

// Prediction is the outcome of classifying one text.
type Prediction struct {
	Class        string             `json:"predicted_class"`
	Confidence   float64            `json:"confidence"`
	Level        ConfidenceLevel    `json:"confidence_level"`
	Distribution []ClassProbability `json:"distribution"`
}

// Model is the loaded-package contract the application classifier consumes:
// both families classify raw text.
type Model interface {
	PredictText(text string) (*Prediction, error)
	IsDeep() bool
}

// buildPrediction assembles the result from one probability row.
func buildPrediction(probs []float64, encoder *LabelEncoder) *Prediction {
	best, confidence := argmaxRow(probs)
	dist := make([]ClassProbability, len(probs))
	for i, p := range probs {
		dist[i] = ClassProbability{Class: encoder.Inverse(i), Probability: p}
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Probability != dist[j].Probability {
			return dist[i].Probability > dist[j].Probability
		}
		return dist[i].Class < dist[j].Class
	})
	return &Prediction{
		Class:        encoder.Inverse(best),
		Confidence:   confidence,
		Level:        LevelFor(confidence),
		Distribution: dist,
	}
}

// PredictText implements Model for classical packages.
func (m *ClassicalModel) PredictText(text string) (*Prediction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	X := m.Vectorizer.Transform([]string{text})
	probs := m.Estimator.PredictProba(X)
	return buildPrediction(probs.RawRowView(0), m.Encoder), nil
}

// IsDeep implements Model.
func (m *ClassicalModel) IsDeep() bool { return false }

// PredictText implements Model for neural packages.
func (m *NeuralModel) PredictText(text string) (*Prediction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	var ids, mask [][]int
	if m.Subword != nil {
		ids, mask = m.Subword.Encode([]string{text})
	} else {
		ids = m.Tokenizer.Encode([]string{text})
		mask = make([][]int, 1)
	}
	probs := m.Net.PredictProba(ids, mask)
	return buildPrediction(probs.RawRowView(0), m.Encoder), nil
}

// IsDeep implements Model.
func (m *NeuralModel) IsDeep() bool { return true }
