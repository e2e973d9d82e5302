package ngram

import (
	"fmt"
	"math"

	"ngram-lm/internal/util"
)

// TrainRatio is the share of sentences used for counting during a held-out
// search; the remainder is the held-out set.
const TrainRatio = 0.9

var (
	// DefaultGammaGrid holds the interpolation candidates 66, 132, ..., 1914.
	DefaultGammaGrid = LinearGrid(66, 66, 29)

	// DefaultBetaGrid holds the back-off discount candidates 0.1, ..., 0.9.
	DefaultBetaGrid = LinearGrid(0.1, 0.1, 9)
)

// LinearGrid returns count candidates start, start+step, ... rounded to nine
// decimals so grids stay reproducible.
func LinearGrid(start, step float64, count int) []float64 {
	grid := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		v := start + float64(i)*step
		grid = append(grid, math.Round(v*1e9)/1e9)
	}
	return grid
}

// SplitHeldOut keeps sentence order and returns the first ratio of sents for
// training and the rest as held-out data.
func SplitHeldOut(sents [][]string, ratio float64) (train, heldOut [][]string, err error) {
	cut := int(float64(len(sents)) * ratio)
	if cut <= 0 || cut >= len(sents) {
		return nil, nil, fmt.Errorf("%w: %d sentences at ratio %.2f", ErrHeldOutTooSmall, len(sents), ratio)
	}
	return sents[:cut], sents[cut:], nil
}

// Candidate is one evaluated hyperparameter value.
type Candidate struct {
	Value      float64 `json:"value"`
	Perplexity float64 `json:"perplexity"`
}

// SearchResult holds the winning hyperparameter and every evaluation.
type SearchResult struct {
	Best       float64     `json:"best"`
	Perplexity float64     `json:"perplexity"`
	Candidates []Candidate `json:"candidates"`
}

// SearchParameter builds one model per candidate, measures its perplexity on
// heldOut and returns the candidate with the lowest perplexity. Ties go to the
// earlier candidate. Evaluations are independent, so up to workers of them run
// concurrently without changing the result.
func SearchParameter(heldOut [][]string, candidates []float64, build func(float64) (Model, error), workers int) (SearchResult, error) {
	if len(heldOut) == 0 {
		return SearchResult{}, ErrHeldOutTooSmall
	}
	if len(candidates) == 0 {
		return SearchResult{}, fmt.Errorf("%w: empty candidate grid", ErrInvalidParameter)
	}

	scores := make([]Candidate, len(candidates))
	err := util.RunPool(len(candidates), workers, func(i int) error {
		m, err := build(candidates[i])
		if err != nil {
			return fmt.Errorf("build candidate %g: %w", candidates[i], err)
		}
		pp, err := Perplexity(m, heldOut)
		if err != nil {
			return fmt.Errorf("evaluate candidate %g: %w", candidates[i], err)
		}
		scores[i] = Candidate{Value: candidates[i], Perplexity: pp}
		return nil
	})
	if err != nil {
		return SearchResult{}, err
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].Perplexity < scores[best].Perplexity {
			best = i
		}
	}
	return SearchResult{
		Best:       scores[best].Value,
		Perplexity: scores[best].Perplexity,
		Candidates: scores,
	}, nil
}
