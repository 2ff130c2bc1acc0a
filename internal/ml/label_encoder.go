package ml

import (
	"fmt"
	"sort"
)

// LabelEncoder is a bijection between the sorted set of profession labels
// seen at fit time and integer class indices [0, K). The class order is
// fixed at fit and persisted with the model package.
type LabelEncoder struct {
	Classes []string

	index map[string]int
}

// FitLabelEncoder builds an encoder over the sorted unique labels.
func FitLabelEncoder(labels []string) (*LabelEncoder, error) {
	seen := make(map[string]struct{}, len(labels))
	var classes []string
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		classes = append(classes, l)
	}
	if len(classes) < 2 {
		return nil, ErrInsufficientClasses
	}
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}, nil
}

func (e *LabelEncoder) ensureIndex() {
	if e.index == nil {
		e.index = make(map[string]int, len(e.Classes))
		for i, c := range e.Classes {
			e.index[c] = i
		}
	}
}

// Transform maps a label to its class index.
func (e *LabelEncoder) Transform(label string) (int, error) {
	e.ensureIndex()
	i, ok := e.index[label]
	if !ok {
		return 0, fmt.Errorf("unknown label %q", label)
	}
	return i, nil
}

// TransformAll maps a label slice to class indices.
func (e *LabelEncoder) TransformAll(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, err := e.Transform(l)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// Inverse maps a class index back to its label.
func (e *LabelEncoder) Inverse(i int) string {
	if i < 0 || i >= len(e.Classes) {
		return ""
	}
	return e.Classes[i]
}

// NumClasses returns K.
func (e *LabelEncoder) NumClasses() int { return len(e.Classes) }
