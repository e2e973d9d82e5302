package ngram

import (
	"fmt"

	"go.uber.org/zap"
)

// InterpolatedModel linearly mixes the maximum-likelihood estimates of every
// order 1..n. Mixing weights come from context counts and the hyperparameter γ:
//
//	λ_i = (1 - Σ_{j<i} λ_j) · c(ctx[i:]) / (c(ctx[i:]) + γ)   for i < n-1
//	λ_{n-1} = 1 - Σ_{j<n-1} λ_j
//
// The unigram estimate is add-one smoothed so every vocabulary token keeps
// some mass.
type InterpolatedModel struct {
	base
	gamma float64
}

// NewInterpolatedModel trains an interpolated model of order n. Without
// WithGamma, γ is chosen by minimising perplexity on a held-out split.
func NewInterpolatedModel(n int, sents [][]string, opts ...Option) (*InterpolatedModel, error) {
	o := newOptions(opts)

	var gamma float64
	if o.gamma != nil {
		gamma = *o.gamma
	} else {
		grid := o.grid
		if len(grid) == 0 {
			grid = DefaultGammaGrid
		}
		result, err := searchHeldOut(n, sents, grid, o, func(counts *CountTrie, g float64) (Model, error) {
			return &InterpolatedModel{base: base{counts}, gamma: g}, nil
		})
		if err != nil {
			return nil, fmt.Errorf("gamma search: %w", err)
		}
		gamma = result.Best
		o.logger.Info("Selected interpolation gamma",
			zap.Int("n", n),
			zap.Float64("gamma", gamma),
			zap.Float64("held_out_perplexity", result.Perplexity),
		)
	}
	if gamma < 0 {
		return nil, fmt.Errorf("%w: gamma %g < 0", ErrInvalidParameter, gamma)
	}

	counts, err := NewCountTrie(n, sents)
	if err != nil {
		return nil, err
	}
	return &InterpolatedModel{base: base{counts}, gamma: gamma}, nil
}

// searchHeldOut splits sents, counts the training part once and runs the grid
// search with models built over those shared counts.
func searchHeldOut(n int, sents [][]string, grid []float64, o options, build func(*CountTrie, float64) (Model, error)) (SearchResult, error) {
	train, heldOut, err := SplitHeldOut(sents, TrainRatio)
	if err != nil {
		return SearchResult{}, err
	}
	counts, err := NewCountTrie(n, train)
	if err != nil {
		return SearchResult{}, err
	}
	result, err := SearchParameter(heldOut, grid, func(v float64) (Model, error) {
		return build(counts, v)
	}, o.workers)
	if err != nil {
		return SearchResult{}, err
	}
	for _, c := range result.Candidates {
		o.logger.Debug("Held-out candidate",
			zap.Float64("value", c.Value),
			zap.Float64("perplexity", c.Perplexity),
		)
	}
	return result, nil
}

// Gamma returns the interpolation hyperparameter in use.
func (m *InterpolatedModel) Gamma() float64 {
	return m.gamma
}

func (m *InterpolatedModel) CondProb(token string, context Gram) (float64, error) {
	if err := checkContext(m.Order(), context); err != nil {
		return 0, err
	}
	if token == StartMarker {
		return 0, nil
	}
	return m.prob(token, context), nil
}

func (m *InterpolatedModel) prob(token string, context Gram) float64 {
	n := m.Order()
	remaining := 1.0
	prob := 0.0
	for i := 0; i < n; i++ {
		suffix := context[i:]

		var lambda float64
		if i == n-1 {
			lambda = remaining
		} else if c := float64(m.Count(suffix)); c > 0 {
			lambda = remaining * c / (c + m.gamma)
		}
		remaining -= lambda
		if lambda == 0 {
			continue
		}

		if len(suffix) == 0 {
			prob += lambda * m.addOne(token)
		} else {
			prob += lambda * m.mle(token, suffix)
		}
	}
	return prob
}

func (m *InterpolatedModel) Name() string {
	return "Interpolated"
}
