package ml

// Sample is one labelled training text after successful PDF extraction.
type Sample struct {
	Text  string
	Label string
}

// TrainResult is the outcome of a training run, classical or neural.
type TrainResult struct {
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	Variant Variant `json:"variant"`

	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`

	TrainSize    int      `json:"train_size"`
	TestSize     int      `json:"test_size"`
	FeatureCount int      `json:"feature_count,omitempty"`
	MaxLength    int      `json:"max_length,omitempty"`
	Classes      []string `json:"classes"`

	// SmallCorpus flags runs where the corpus was too small to hold out a
	// test split, so train and test coincide.
	SmallCorpus bool `json:"small_corpus,omitempty"`

	EpochsTrained int                     `json:"epochs_trained,omitempty"`
	History       []EpochMetrics          `json:"history,omitempty"`
	Report        map[string]ClassMetrics `json:"report,omitempty"`
}

// ClassicalModel bundles the fitted artefacts of a classical package.
type ClassicalModel struct {
	Variant    Variant
	Vectorizer *TFIDFVectorizer
	Encoder    *LabelEncoder
	Estimator  Estimator
}

// ClassicalConfig parameterises a classical training run.
type ClassicalConfig struct {
	Variant      Variant
	Hyperparams  Hyperparams
	TestFraction float64 // 0 means the default 0.2
	Seed         int64   // 0 means the default 42

	// Progress, when set, receives coarse progress updates.
	Progress func(percent int, message string)
}

func (c *ClassicalConfig) defaults() {
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		c.TestFraction = 0.2
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
}

// TrainClassical fits vectoriser, encoder and estimator over the corpus and
// evaluates on a stratified held-out split. Validation failures return an
// error before anything is fitted; the store is never touched here.
func TrainClassical(samples []Sample, cfg ClassicalConfig) (*ClassicalModel, *TrainResult, error) {
	cfg.defaults()
	progress := cfg.Progress
	if progress == nil {
		progress = func(int, string) {}
	}
	if cfg.Variant.IsDeep() {
		return nil, nil, ErrUnknownVariant
	}
	if len(samples) == 0 {
		return nil, nil, ErrEmptyCorpus
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

	progress(10, "fitting vectorizer")
	vectorizer := NewTFIDFVectorizer(len(texts))
	X, featureCount, err := vectorizer.FitTransform(texts)
	if err != nil {
		return nil, nil, err
	}

	var trainIdx, testIdx []int
	smallCorpus := len(texts) <= 4
	if smallCorpus {
		for i := range texts {
			trainIdx = append(trainIdx, i)
			testIdx = append(testIdx, i)
		}
	} else {
		trainIdx, testIdx = StratifiedSplit(y, cfg.TestFraction, cfg.Seed)
	}

	progress(30, "training estimator")
	estimator, err := NewEstimator(cfg.Variant, cfg.Hyperparams)
	if err != nil {
		return nil, nil, err
	}
	if err := estimator.Fit(subsetDense(X, trainIdx), takeInts(y, trainIdx), k); err != nil {
		return nil, nil, err
	}

	progress(85, "evaluating")
	probs := estimator.PredictProba(subsetDense(X, testIdx))
	yPred := make([]int, len(testIdx))
	for i := range testIdx {
		yPred[i], _ = argmaxRow(probs.RawRowView(i))
	}
	report := Evaluate(takeInts(y, testIdx), yPred, encoder)

	model := &ClassicalModel{
		Variant:    cfg.Variant,
		Vectorizer: vectorizer,
		Encoder:    encoder,
		Estimator:  estimator,
	}
	result := &TrainResult{
		Success:      true,
		Variant:      cfg.Variant,
		Accuracy:     report.Accuracy,
		Precision:    report.Precision,
		Recall:       report.Recall,
		F1:           report.F1,
		TrainSize:    len(trainIdx),
		TestSize:     len(testIdx),
		FeatureCount: featureCount,
		Classes:      encoder.Classes,
		SmallCorpus:  smallCorpus,
		Report:       report.PerClass,
	}
	progress(100, "training complete")
	return model, result, nil
}
