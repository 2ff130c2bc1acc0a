package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// EpochMetrics is the per-epoch training snapshot delivered to observers.
type EpochMetrics struct {
	Epoch       int     `json:"epoch"`
	Total       int     `json:"total"`
	Loss        float64 `json:"loss"`
	Accuracy    float64 `json:"accuracy"`
	ValLoss     float64 `json:"val_loss"`
	ValAccuracy float64 `json:"val_accuracy"`
}

// EpochFunc observes epoch completions; returning false cancels the run
// before the next epoch starts.
type EpochFunc func(m EpochMetrics) bool

// NeuralModel bundles the fitted artefacts of a neural package. Exactly one
// of Tokenizer (lstm/cnn) and Subword (bert) is set.
type NeuralModel struct {
	Variant   Variant
	Tokenizer *Tokenizer
	Subword   *WordPieceTokenizer
	Encoder   *LabelEncoder
	Net       NeuralNetwork
}

// NeuralConfig parameterises a neural training run.
type NeuralConfig struct {
	Variant      Variant
	Epochs       int
	BatchSize    int
	MaxLen       int // 0 means 512
	VocabSize    int // 0 means 10000
	Seed         int64
	Patience     int     // early-stopping patience, 0 means 3
	TestFraction float64 // 0 means 0.2

	// BertCacheDir and EncoderName locate the pretrained encoder for the
	// bert variant.
	BertCacheDir string
	EncoderName  string

	OnEpoch EpochFunc
}

func (c *NeuralConfig) defaults() {
	if c.Epochs <= 0 {
		c.Epochs = 10
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 8
	}
	if c.MaxLen <= 0 {
		c.MaxLen = DefaultMaxLen
	}
	if c.VocabSize <= 0 {
		c.VocabSize = DefaultVocabSize
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.Patience <= 0 {
		c.Patience = 3
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		c.TestFraction = 0.2
	}
	if c.EncoderName == "" {
		c.EncoderName = DefaultEncoderName
	}
}

// TrainNeural builds and fits the network for the chosen neural variant with
// early stopping on validation loss. Any panic in the numeric code is
// converted into an error; a failed or cancelled run leaves no artefacts.
func TrainNeural(samples []Sample, cfg NeuralConfig) (model *NeuralModel, result *TrainResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			model, result = nil, nil
			err = fmt.Errorf("neural training failed: %v", r)
		}
	}()
	return trainNeural(samples, cfg)
}

func trainNeural(samples []Sample, cfg NeuralConfig) (*NeuralModel, *TrainResult, error) {
	cfg.defaults()
	if !cfg.Variant.IsDeep() {
		return nil, nil, ErrUnknownVariant
	}
	if len(samples) == 0 {
		return nil, nil, ErrEmptyCorpus
	}
	if cfg.Variant == VariantBERT && !EncoderAvailable(cfg.BertCacheDir, cfg.EncoderName) {
		return nil, nil, fmt.Errorf("%w: pretrained encoder %q not found in %s",
			ErrMissingDependency, cfg.EncoderName, cfg.BertCacheDir)
	}

	texts := make([]string, len(samples))
	labels := make([]string, len(samples))
	for i, s := range samples {
		texts[i] = s.Text
		labels[i] = s.Label
	}
	encoder, err := FitLabelEncoder(labels)
	if err != nil {
		return nil, nil, err
	}
	y, err := encoder.TransformAll(labels)
	if err != nil {
		return nil, nil, err
	}
	k := encoder.NumClasses()

	model := &NeuralModel{Variant: cfg.Variant, Encoder: encoder}
	var ids, mask [][]int
	switch cfg.Variant {
	case VariantBERT:
		pretrained, subword, err := LoadPretrainedEncoder(cfg.BertCacheDir, cfg.EncoderName, cfg.MaxLen)
		if err != nil {
			return nil, nil, err
		}
		model.Subword = subword
		ids, mask = subword.Encode(texts)
		model.Net = NewBERTNetwork(pretrained, cfg.EncoderName, cfg.MaxLen, k, cfg.Seed)
	default:
		tok := &Tokenizer{VocabSize: cfg.VocabSize, MaxLen: cfg.MaxLen}
		tok.Fit(texts)
		model.Tokenizer = tok
		ids = tok.Encode(texts)
		mask = make([][]int, len(ids))
		if cfg.Variant == VariantLSTM {
			model.Net = NewLSTMNetwork(cfg.VocabSize, cfg.MaxLen, k, cfg.Seed)
		} else {
			model.Net = NewCNNNetwork(cfg.VocabSize, cfg.MaxLen, k, cfg.Seed)
		}
	}

	trainIdx, valIdx := StratifiedSplit(y, cfg.TestFraction, cfg.Seed)
	trainIDs, trainMask, trainY := takeSeqs(ids, trainIdx), takeSeqs(mask, trainIdx), takeInts(y, trainIdx)
	valIDs, valMask, valY := takeSeqs(ids, valIdx), takeSeqs(mask, valIdx), takeInts(y, valIdx)

	rng := rand.New(rand.NewSource(cfg.Seed))
	order := make([]int, len(trainIDs))
	for i := range order {
		order[i] = i
	}

	bestValLoss := math.Inf(1)
	var bestNet NeuralNetwork
	sinceBest := 0
	var history []EpochMetrics
	epochsTrained := 0

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var epochLoss float64
		batches := 0
		for start := 0; start < len(order); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]
			epochLoss += model.Net.TrainBatch(
				takeSeqs(trainIDs, batch), takeSeqs(trainMask, batch), takeInts(trainY, batch))
			batches++
		}
		epochLoss /= float64(batches)

		trainAcc := accuracyOf(model.Net, trainIDs, trainMask, trainY)
		valLoss, valAcc := lossAndAccuracy(model.Net, valIDs, valMask, valY)

		m := EpochMetrics{
			Epoch: epoch, Total: cfg.Epochs,
			Loss: epochLoss, Accuracy: trainAcc,
			ValLoss: valLoss, ValAccuracy: valAcc,
		}
		history = append(history, m)
		epochsTrained = epoch

		if valLoss < bestValLoss {
			bestValLoss = valLoss
			sinceBest = 0
			snapshot, err := cloneNetwork(model.Net)
			if err != nil {
				return nil, nil, err
			}
			bestNet = snapshot
		} else {
			sinceBest++
		}

		if cfg.OnEpoch != nil && !cfg.OnEpoch(m) {
			return nil, nil, ErrCancelled
		}
		if sinceBest >= cfg.Patience {
			break
		}
	}

	if bestNet != nil {
		model.Net = bestNet
	}

	yPred := predictLabels(model.Net, valIDs, valMask)
	report := Evaluate(valY, yPred, encoder)

	result := &TrainResult{
		Success:       true,
		Variant:       cfg.Variant,
		Accuracy:      report.Accuracy,
		Precision:     report.Precision,
		Recall:        report.Recall,
		F1:            report.F1,
		TrainSize:     len(trainIdx),
		TestSize:      len(valIdx),
		MaxLength:     cfg.MaxLen,
		Classes:       encoder.Classes,
		EpochsTrained: epochsTrained,
		History:       history,
		Report:        report.PerClass,
	}
	return model, result, nil
}

func predictLabels(net NeuralNetwork, ids, mask [][]int) []int {
	probs := net.PredictProba(ids, mask)
	out := make([]int, len(ids))
	for i := range ids {
		out[i], _ = argmaxRow(probs.RawRowView(i))
	}
	return out
}

func accuracyOf(net NeuralNetwork, ids, mask [][]int, y []int) float64 {
	if len(ids) == 0 {
		return 0
	}
	pred := predictLabels(net, ids, mask)
	correct := 0
	for i := range y {
		if pred[i] == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

func lossAndAccuracy(net NeuralNetwork, ids, mask [][]int, y []int) (float64, float64) {
	if len(ids) == 0 {
		return 0, 0
	}
	probs := net.PredictProba(ids, mask)
	var loss float64
	correct := 0
	for i := range y {
		row := probs.RawRowView(i)
		loss += crossEntropy(row, y[i])
		if p, _ := argmaxRow(row); p == y[i] {
			correct++
		}
	}
	n := float64(len(y))
	return loss / n, float64(correct) / n
}
