package ml

import "errors"

var (
	// ErrInsufficientClasses is returned when the training corpus contains
	// fewer than two distinct professions.
	ErrInsufficientClasses = errors.New("insufficient classes: at least 2 professions are required")

	// ErrEmptyCorpus is returned when no text survived PDF extraction.
	ErrEmptyCorpus = errors.New("empty corpus: no usable training texts")

	// ErrUnknownVariant is returned for a variant name outside the closed set.
	ErrUnknownVariant = errors.New("unknown variant")

	// ErrMissingDependency is returned when a neural variant's runtime
	// artefacts (e.g. the pretrained encoder cache) are not available.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrEmptyInput is returned by prediction when the input text is blank.
	ErrEmptyInput = errors.New("empty input text")

	// ErrCancelled is returned when a training run is cancelled between
	// epochs; the partial model is discarded.
	ErrCancelled = errors.New("training cancelled")
)
