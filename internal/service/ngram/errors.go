package ngram

import "errors"

var (
	// ErrInvalidOrder is returned when a model is built with order < 1.
	ErrInvalidOrder = errors.New("n-gram order must be positive")

	// ErrContextLength is returned when a context does not hold exactly n-1 tokens.
	ErrContextLength = errors.New("context length does not match model order")

	// ErrReservedToken is returned when a training sentence already contains a boundary marker.
	ErrReservedToken = errors.New("sentence contains a reserved boundary marker")

	// ErrEmptyCorpus is returned when an operation needs at least one sentence.
	ErrEmptyCorpus = errors.New("corpus is empty")

	// ErrHeldOutTooSmall is returned when the train/held-out split leaves one side empty.
	ErrHeldOutTooSmall = errors.New("corpus too small for a held-out split")

	// ErrInvalidParameter is returned for out-of-range smoothing hyperparameters.
	ErrInvalidParameter = errors.New("invalid smoothing parameter")

	// ErrUnknownMethod is returned by NewModel for an unrecognised smoothing method.
	ErrUnknownMethod = errors.New("unknown smoothing method")

	// ErrUnknownContext is returned by the generator for a context never seen in training.
	ErrUnknownContext = errors.New("context not observed in training data")

	// ErrMaxTokens is returned when sentence generation exceeds its configured bound.
	ErrMaxTokens = errors.New("generated sentence exceeded max tokens")
)
