package ml

// ClassMetrics is the per-class slice of the evaluation report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// EvalReport holds held-out metrics. Precision, recall and F1 are
// support-weighted averages; division by zero defaults to 0.
type EvalReport struct {
	Accuracy  float64                 `json:"accuracy"`
	Precision float64                 `json:"precision"`
	Recall    float64                 `json:"recall"`
	F1        float64                 `json:"f1"`
	PerClass  map[string]ClassMetrics `json:"per_class"`
}

// Evaluate compares predictions against truth over k classes, naming classes
// through the encoder for the per-class report.
func Evaluate(yTrue, yPred []int, enc *LabelEncoder) EvalReport {
	k := enc.NumClasses()
	tp := make([]int, k)
	fp := make([]int, k)
	fn := make([]int, k)
	support := make([]int, k)

	correct := 0
	for i := range yTrue {
		support[yTrue[i]]++
		if yPred[i] == yTrue[i] {
			correct++
			tp[yTrue[i]]++
		} else {
			fp[yPred[i]]++
			fn[yTrue[i]]++
		}
	}

	report := EvalReport{PerClass: make(map[string]ClassMetrics, k)}
	if len(yTrue) > 0 {
		report.Accuracy = float64(correct) / float64(len(yTrue))
	}

	total := float64(len(yTrue))
	for c := 0; c < k; c++ {
		precision := safeDiv(float64(tp[c]), float64(tp[c]+fp[c]))
		recall := safeDiv(float64(tp[c]), float64(tp[c]+fn[c]))
		f1 := safeDiv(2*precision*recall, precision+recall)
		report.PerClass[enc.Inverse(c)] = ClassMetrics{
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   support[c],
		}
		if total > 0 {
			w := float64(support[c]) / total
			report.Precision += w * precision
			report.Recall += w * recall
			report.F1 += w * f1
		}
	}
	return report
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
