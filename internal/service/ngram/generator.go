package ngram

import (
	"fmt"
	"sort"
	"sync"
)

// RandSource yields uniform draws in [0, 1). *math/rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// Outcome is one entry of a context's sampling distribution.
type Outcome struct {
	Token string  `json:"token"`
	Prob  float64 `json:"prob"`
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithMaxTokens makes GenerateSent fail with ErrMaxTokens once a sentence grows
// past max tokens. Zero or a negative value means unbounded.
func WithMaxTokens(max int) GeneratorOption {
	return func(g *Generator) { g.maxTokens = max }
}

// Generator samples sentences from a trained model. Distributions are computed
// once for every observed context of length n-1; the random source is the only
// mutable state and is guarded by a mutex.
type Generator struct {
	n         int
	dists     map[string][]Outcome
	totals    map[string]float64
	maxTokens int

	mu  sync.Mutex
	rng RandSource
}

// NewGenerator builds the per-context distributions of m.
func NewGenerator(m Model, rng RandSource, opts ...GeneratorOption) (*Generator, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidParameter)
	}
	g := &Generator{
		n:      m.Order(),
		dists:  make(map[string][]Outcome),
		totals: make(map[string]float64),
		rng:    rng,
	}
	for _, opt := range opts {
		opt(g)
	}

	counts := m.Counts()
	for _, gc := range counts.Grams(g.n) {
		ctx := gc.Gram.Context()
		key := ctx.key()
		if _, done := g.dists[key]; done {
			continue
		}

		tokens := counts.Extensions(ctx)
		dist := make([]Outcome, 0, len(tokens))
		total := 0.0
		for _, token := range tokens {
			p, err := m.CondProb(token, ctx)
			if err != nil {
				return nil, fmt.Errorf("distribution for %q: %w", ctx.String(), err)
			}
			dist = append(dist, Outcome{Token: token, Prob: p})
			total += p
		}
		sort.SliceStable(dist, func(i, j int) bool {
			if dist[i].Prob != dist[j].Prob {
				return dist[i].Prob > dist[j].Prob
			}
			return dist[i].Token < dist[j].Token
		})
		g.dists[key] = dist
		g.totals[key] = total
	}
	return g, nil
}

// Order returns the order of the underlying model.
func (g *Generator) Order() int {
	return g.n
}

// Contexts returns the number of contexts with a sampling distribution.
func (g *Generator) Contexts() int {
	return len(g.dists)
}

// Distribution returns a copy of the sorted distribution for context.
func (g *Generator) Distribution(context Gram) ([]Outcome, error) {
	if err := checkContext(g.n, context); err != nil {
		return nil, err
	}
	dist, ok := g.dists[context.key()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContext, context.String())
	}
	return append([]Outcome(nil), dist...), nil
}

// GenerateToken samples the next token after context by walking the sorted
// distribution until the cumulative probability exceeds a uniform draw. When a
// smoothed model leaves the draw beyond the listed mass, the overflow is mapped
// proportionally back onto the listed tokens.
func (g *Generator) GenerateToken(context Gram) (string, error) {
	if err := checkContext(g.n, context); err != nil {
		return "", err
	}
	key := context.key()
	dist, ok := g.dists[key]
	if !ok || len(dist) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownContext, context.String())
	}

	g.mu.Lock()
	u := g.rng.Float64()
	g.mu.Unlock()

	total := g.totals[key]
	if total <= 0 {
		return dist[0].Token, nil
	}
	if u >= total {
		u = (u - total) / (1 - total) * total
	}
	cumulative := 0.0
	for _, o := range dist {
		cumulative += o.Prob
		if cumulative > u {
			return o.Token, nil
		}
	}
	return dist[len(dist)-1].Token, nil
}

// GenerateSent samples a sentence, starting from the all-start context and
// stopping at the end marker. Padding markers are not part of the result.
func (g *Generator) GenerateSent() ([]string, error) {
	context := startContext(g.n)
	var sent []string
	for {
		token, err := g.GenerateToken(context)
		if err != nil {
			return nil, err
		}
		if token == EndMarker {
			return sent, nil
		}
		sent = append(sent, token)
		if g.maxTokens > 0 && len(sent) > g.maxTokens {
			return nil, fmt.Errorf("%w: %d", ErrMaxTokens, g.maxTokens)
		}
		if g.n > 1 {
			next := make(Gram, 0, g.n-1)
			next = append(next, context[1:]...)
			context = append(next, token)
		}
	}
}
