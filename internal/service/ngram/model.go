package ngram

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// Model is a conditional-probability estimator over (token, context) backed by
// a count table. Implementations are immutable after construction.
type Model interface {
	// Order returns n; contexts passed to CondProb hold exactly n-1 tokens.
	Order() int

	// Counts exposes the count table the model was trained on.
	Counts() *CountTrie

	// CondProb returns P(token | context) in [0, 1].
	CondProb(token string, context Gram) (float64, error)

	// Name returns the name of the smoothing algorithm
	Name() string
}

// Smoothing method names accepted by NewModel.
const (
	MethodMLE          = "mle"
	MethodAddOne       = "addone"
	MethodInterpolated = "interpolated"
	MethodBackOff      = "backoff"
	MethodKneserNey    = "kneserney"
)

// Methods lists the supported smoothing methods.
var Methods = []string{MethodMLE, MethodAddOne, MethodInterpolated, MethodBackOff, MethodKneserNey}

// NewModel trains a model of the given smoothing method.
func NewModel(method string, n int, sents [][]string, opts ...Option) (Model, error) {
	var (
		m   Model
		err error
	)
	switch strings.ToLower(method) {
	case MethodMLE:
		m, err = NewMLModel(n, sents)
	case MethodAddOne:
		m, err = NewAddOneModel(n, sents)
	case MethodInterpolated:
		m, err = NewInterpolatedModel(n, sents, opts...)
	case MethodBackOff:
		m, err = NewBackOffModel(n, sents, opts...)
	case MethodKneserNey:
		m, err = NewKneserNeyModel(n, sents)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// base holds the state every smoothing variant shares.
type base struct {
	counts *CountTrie
}

func (b base) Order() int {
	return b.counts.Order()
}

func (b base) Counts() *CountTrie {
	return b.counts
}

// Count returns the training count of g.
func (b base) Count(g Gram) int64 {
	return b.counts.Count(g)
}

// V returns the vocabulary size.
func (b base) V() int {
	return b.counts.VocabularySize()
}

// addOne is the Laplace-smoothed unigram estimate.
func (b base) addOne(token string) float64 {
	return float64(b.Count(Gram{token})+1) / float64(b.Count(Gram{})+int64(b.V()))
}

// mle returns Count(ctx+token)/Count(ctx), or 0 for an unseen context.
func (b base) mle(token string, ctx Gram) float64 {
	c := b.Count(ctx)
	if c == 0 {
		return 0
	}
	return float64(b.Count(ctx.Extend(token))) / float64(c)
}

func checkContext(n int, context Gram) error {
	if len(context) != n-1 {
		return fmt.Errorf("%w: got %d tokens, order %d needs %d", ErrContextLength, len(context), n, n-1)
	}
	return nil
}

// MLModel is the unsmoothed maximum-likelihood model.
type MLModel struct {
	base
}

// NewMLModel trains a maximum-likelihood model of order n.
func NewMLModel(n int, sents [][]string) (*MLModel, error) {
	counts, err := NewCountTrie(n, sents)
	if err != nil {
		return nil, err
	}
	return &MLModel{base{counts}}, nil
}

func (m *MLModel) CondProb(token string, context Gram) (float64, error) {
	if err := checkContext(m.Order(), context); err != nil {
		return 0, err
	}
	if token == StartMarker {
		return 0, nil
	}
	return m.mle(token, context), nil
}

func (m *MLModel) Name() string {
	return "MLE"
}

// SentLogProb returns the base-2 log-probability of sent. It is -Inf as soon as
// one factor is zero.
func SentLogProb(m Model, sent []string) (float64, error) {
	n := m.Order()
	padded := Pad(sent, n)
	total := 0.0
	for i := n - 1; i < len(padded); i++ {
		p, err := m.CondProb(padded[i], Gram(padded[i-n+1:i]))
		if err != nil {
			return 0, err
		}
		if p == 0 {
			return math.Inf(-1), nil
		}
		total += math.Log2(p)
	}
	return total, nil
}

// SentProb returns the probability of sent. Subject to underflow on long
// sentences; prefer SentLogProb.
func SentProb(m Model, sent []string) (float64, error) {
	n := m.Order()
	padded := Pad(sent, n)
	prob := 1.0
	for i := n - 1; i < len(padded); i++ {
		p, err := m.CondProb(padded[i], Gram(padded[i-n+1:i]))
		if err != nil {
			return 0, err
		}
		prob *= p
		if prob == 0 {
			return 0, nil
		}
	}
	return prob, nil
}

// CrossEntropy returns the per-token average negative base-2 log-probability of
// sents, end markers included. It is +Inf when any sentence has probability 0.
func CrossEntropy(m Model, sents [][]string) (float64, error) {
	if len(sents) == 0 {
		return 0, ErrEmptyCorpus
	}
	tokens := 0
	logProb := 0.0
	for _, sent := range sents {
		lp, err := SentLogProb(m, sent)
		if err != nil {
			return 0, err
		}
		logProb += lp
		tokens += len(sent) + 1
	}
	return -logProb / float64(tokens), nil
}

// Perplexity returns 2^H where H is the cross-entropy of sents under m.
func Perplexity(m Model, sents [][]string) (float64, error) {
	h, err := CrossEntropy(m, sents)
	if err != nil {
		return 0, err
	}
	return math.Pow(2, h), nil
}

// ModelStats contains statistics about an n-gram model
type ModelStats struct {
	N              int      `json:"n"`
	VocabularySize int      `json:"vocabulary_size"`
	NGramCount     int      `json:"ngram_count"`
	TotalTokens    int64    `json:"total_tokens"`
	Sentences      int      `json:"sentences"`
	SmootherName   string   `json:"smoother_name"`
	Gamma          *float64 `json:"gamma,omitempty"`
	Beta           *float64 `json:"beta,omitempty"`
	Discount       *float64 `json:"discount,omitempty"`
}

// Stats returns statistics about m
func Stats(m Model) ModelStats {
	counts := m.Counts()
	stats := ModelStats{
		N:              m.Order(),
		VocabularySize: counts.VocabularySize(),
		NGramCount:     counts.DistinctGrams(),
		TotalTokens:    counts.TotalTokens(),
		Sentences:      counts.Sentences(),
		SmootherName:   m.Name(),
	}
	switch v := m.(type) {
	case *InterpolatedModel:
		g := v.Gamma()
		stats.Gamma = &g
	case *BackOffModel:
		b := v.Beta()
		stats.Beta = &b
	case *KneserNeyModel:
		d := v.Discount()
		stats.Discount = &d
	}
	return stats
}

// Option configures the construction of tunable models.
type Option func(*options)

type options struct {
	gamma   *float64
	beta    *float64
	grid    []float64
	workers int
	logger  *zap.Logger
}

func newOptions(opts []Option) options {
	o := options{
		workers: 1,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithGamma fixes the interpolation hyperparameter and skips the held-out search.
func WithGamma(gamma float64) Option {
	return func(o *options) { o.gamma = &gamma }
}

// WithBeta fixes the back-off discount and skips the held-out search.
func WithBeta(beta float64) Option {
	return func(o *options) { o.beta = &beta }
}

// WithGrid replaces the default candidate list of the held-out search.
func WithGrid(candidates []float64) Option {
	return func(o *options) { o.grid = append([]float64(nil), candidates...) }
}

// WithSearchWorkers evaluates up to workers candidates concurrently.
func WithSearchWorkers(workers int) Option {
	return func(o *options) {
		if workers > 0 {
			o.workers = workers
		}
	}
}

// WithLogger sets the logger used while training.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
