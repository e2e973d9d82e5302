package ngram

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// BackOffModel implements back-off with absolute discounting. Every seen
// continuation of a one-token context gives up β counts; the freed mass α(ctx)
// is spread over the unseen continuations B(ctx) in proportion to add-one
// unigram estimates. Longer contexts always defer to their suffix, scaled by
// α(ctx) and renormalised over B(ctx), and are capped at 1. The resulting
// distributions need not sum to one.
type BackOffModel struct {
	base
	beta   float64
	params map[string]backOffParams // observed contexts of length 1..n-1
}

// backOffParams caches the per-context quantities of the recursion.
type backOffParams struct {
	alpha float64 // leftover mass α(ctx)
	denom float64 // lower-order mass of B(ctx); 0 when B(ctx) is empty
	mass  float64 // Σ_{w∈V} P(w | ctx), kept for contexts shorter than n-1
}

// minDenom treats lower-order masses below it as empty.
const minDenom = 1e-12

// NewBackOffModel trains a back-off model of order n. Without WithBeta, β is
// chosen by minimising perplexity on a held-out split.
func NewBackOffModel(n int, sents [][]string, opts ...Option) (*BackOffModel, error) {
	o := newOptions(opts)

	var beta float64
	if o.beta != nil {
		beta = *o.beta
	} else {
		grid := o.grid
		if len(grid) == 0 {
			grid = DefaultBetaGrid
		}
		result, err := searchHeldOut(n, sents, grid, o, func(counts *CountTrie, b float64) (Model, error) {
			return newBackOffFromCounts(counts, b)
		})
		if err != nil {
			return nil, fmt.Errorf("beta search: %w", err)
		}
		beta = result.Best
		o.logger.Info("Selected back-off beta",
			zap.Int("n", n),
			zap.Float64("beta", beta),
			zap.Float64("held_out_perplexity", result.Perplexity),
		)
	}

	counts, err := NewCountTrie(n, sents)
	if err != nil {
		return nil, err
	}
	return newBackOffFromCounts(counts, beta)
}

func newBackOffFromCounts(counts *CountTrie, beta float64) (*BackOffModel, error) {
	if beta < 0 || beta > 1 {
		return nil, fmt.Errorf("%w: beta %g outside [0, 1]", ErrInvalidParameter, beta)
	}
	m := &BackOffModel{
		base:   base{counts},
		beta:   beta,
		params: make(map[string]backOffParams),
	}
	// Shorter contexts first: a context's denominator needs its suffix's mass.
	n := counts.Order()
	for k := 1; k < n; k++ {
		for _, gc := range counts.Grams(k) {
			key := gc.Gram.key()
			m.params[key] = m.computeParams(gc.Gram)
			if k > 1 && k < n-1 {
				p := m.params[key]
				p.mass = m.sumOverVocabulary(gc.Gram)
				m.params[key] = p
			}
		}
	}
	return m, nil
}

// Beta returns the discount in use.
func (m *BackOffModel) Beta() float64 {
	return m.beta
}

func (m *BackOffModel) CondProb(token string, context Gram) (float64, error) {
	if err := checkContext(m.Order(), context); err != nil {
		return 0, err
	}
	if token == StartMarker {
		return 0, nil
	}
	return m.prob(token, context), nil
}

func (m *BackOffModel) prob(token string, ctx Gram) float64 {
	if len(ctx) == 0 {
		total := m.Count(ctx)
		if total == 0 {
			return 0
		}
		return float64(m.Count(Gram{token})) / float64(total)
	}

	if len(ctx) == 1 {
		if c := m.Count(ctx); c > 0 {
			if hits := m.Count(ctx.Extend(token)); hits > 0 {
				return m.discounted(hits, c)
			}
		}
		p := m.lookup(ctx)
		if p.denom == 0 {
			return 0
		}
		return p.alpha * m.addOne(token) / p.denom
	}

	p := m.lookup(ctx)
	if p.denom == 0 {
		return 0
	}
	return math.Min(p.alpha*m.prob(token, ctx[1:])/p.denom, 1)
}

// discounted returns count*(ctx+w)/count(ctx), with count* clamped at zero.
func (m *BackOffModel) discounted(hits, contextCount int64) float64 {
	d := float64(hits) - m.beta
	if d < 0 {
		d = 0
	}
	return d / float64(contextCount)
}

// lookup returns the cached values of an observed context. An unseen context
// has A(ctx) empty, so α = 1 and B(ctx) is the whole vocabulary.
func (m *BackOffModel) lookup(ctx Gram) backOffParams {
	if p, ok := m.params[ctx.key()]; ok {
		return p
	}
	var denom float64
	if len(ctx) == 1 {
		denom = 1
	} else {
		denom = m.mass(ctx[1:])
	}
	p := backOffParams{alpha: 1, denom: denom}
	if denom > 0 {
		p.mass = 1
	}
	return p
}

// mass returns Σ_{w∈V} P(w | ctx).
func (m *BackOffModel) mass(ctx Gram) float64 {
	if len(ctx) == 0 {
		if m.Count(ctx) == 0 {
			return 0
		}
		return 1
	}
	return m.lookup(ctx).mass
}

// sumOverVocabulary returns Σ_{w∈V} P(w | ctx) for an observed context whose
// parameters are already cached.
func (m *BackOffModel) sumOverVocabulary(ctx Gram) float64 {
	sum := 0.0
	for _, w := range m.Counts().Vocabulary() {
		sum += m.prob(w, ctx)
	}
	return sum
}

// computeParams derives α and the B(ctx) normaliser of an observed context. The
// normaliser is the lower-order mass outside A(ctx), which equals summing the
// lower-order distribution over B(ctx). The mass of a one-token context has a
// closed form; longer contexts are summed by the caller when a longer context
// needs them.
func (m *BackOffModel) computeParams(ctx Gram) backOffParams {
	c := m.Count(ctx)
	seen := m.Counts().Extensions(ctx)

	kept := 0.0
	for _, w := range seen {
		kept += m.discounted(m.Count(ctx.Extend(w)), c)
	}
	alpha := 1 - kept

	var denom float64
	if len(seen) < m.V() {
		var lowerSeen float64
		if len(ctx) == 1 {
			for _, w := range seen {
				lowerSeen += m.addOne(w)
			}
			denom = 1 - lowerSeen
		} else {
			for _, w := range seen {
				lowerSeen += m.prob(w, ctx[1:])
			}
			denom = m.mass(ctx[1:]) - lowerSeen
		}
		if denom < minDenom {
			denom = 0
		}
	}

	p := backOffParams{alpha: alpha, denom: denom}
	if len(ctx) == 1 {
		p.mass = kept
		if denom > 0 {
			p.mass += alpha
		}
	}
	return p
}

func (m *BackOffModel) Name() string {
	return "BackOff"
}
