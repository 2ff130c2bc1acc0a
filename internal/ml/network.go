package ml

import (
	"bytes"
	"encoding/gob"

	"gonum.org/v1/gonum/mat"
)

// NeuralNetwork is the polymorphic contract shared by the neural variants,
// mirroring Estimator for the classical ones. Mask rows are ignored by the
// word-index networks.
type NeuralNetwork interface {
	// PredictProba returns an n x k matrix of class probabilities.
	PredictProba(ids, mask [][]int) *mat.Dense
	// TrainBatch runs one optimisation step over a mini-batch and returns
	// the mean cross-entropy loss.
	TrainBatch(ids, mask [][]int, labels []int) float64
	// InputLen reports the fixed sequence length L.
	InputLen() int
	// NumClasses reports the output dimensionality.
	NumClasses() int
}

// cloneNetwork deep-copies a network through gob; used to snapshot the best
// weights for early stopping.
func cloneNetwork(n NeuralNetwork) (NeuralNetwork, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&n); err != nil {
		return nil, err
	}
	var out NeuralNetwork
	if err := gob.NewDecoder(&buf).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
