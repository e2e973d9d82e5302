package ngram

import (
	"errors"
	"math"
	"testing"
)

// checkNormalized asserts Σ_{w∈V} P(w | ctx) ≈ 1 for every observed context of
// length n-1 that does not contain the end marker, and for an unseen context.
func checkNormalized(t *testing.T, m Model, unseen Gram) {
	t.Helper()
	counts := m.Counts()
	n := m.Order()

	contexts := []Gram{unseen}
	for _, gc := range counts.Grams(n - 1) {
		if containsToken(gc.Gram, EndMarker) {
			continue
		}
		contexts = append(contexts, gc.Gram)
	}

	for _, ctx := range contexts {
		sum := 0.0
		for _, w := range counts.Vocabulary() {
			p, err := m.CondProb(w, ctx)
			if err != nil {
				t.Fatalf("%s CondProb(%s | %v) failed: %v", m.Name(), w, ctx, err)
			}
			if p < 0 || p > 1 {
				t.Fatalf("%s CondProb(%s | %v) = %g outside [0, 1]", m.Name(), w, ctx, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("%s n=%d: Σ P(w | %v) = %.12f, want 1", m.Name(), n, ctx, sum)
		}
	}
}

func containsToken(g Gram, token string) bool {
	for _, w := range g {
		if w == token {
			return true
		}
	}
	return false
}

func TestMLModel_CondProb(t *testing.T) {
	m, err := NewMLModel(2, catSents)
	if err != nil {
		t.Fatalf("NewMLModel failed: %v", err)
	}

	tests := []struct {
		token string
		ctx   Gram
		want  float64
	}{
		{"el", Gram{StartMarker}, 0.5},
		{"gato", Gram{"el"}, 1},
		{"pescado", Gram{"come"}, 0.5},
		{EndMarker, Gram{"."}, 1},
		{"gata", Gram{"el"}, 0},
		{"el", Gram{"perro"}, 0},
	}
	for _, tt := range tests {
		got, err := m.CondProb(tt.token, tt.ctx)
		if err != nil {
			t.Fatalf("CondProb(%s | %v) failed: %v", tt.token, tt.ctx, err)
		}
		if !approxEqual(got, tt.want) {
			t.Errorf("CondProb(%s | %v) = %g, want %g", tt.token, tt.ctx, got, tt.want)
		}
	}
}

func TestSentLogProb(t *testing.T) {
	m, err := NewMLModel(2, catSents)
	if err != nil {
		t.Fatalf("NewMLModel failed: %v", err)
	}

	lp, err := SentLogProb(m, catSents[0])
	if err != nil {
		t.Fatalf("SentLogProb failed: %v", err)
	}
	if !approxEqual(lp, -2) {
		t.Errorf("SentLogProb = %g, want -2", lp)
	}
	p, err := SentProb(m, catSents[0])
	if err != nil {
		t.Fatalf("SentProb failed: %v", err)
	}
	if !approxEqual(p, 0.25) {
		t.Errorf("SentProb = %g, want 0.25", p)
	}

	unseen := []string{"el", "gata", "come", "."}
	lp, err = SentLogProb(m, unseen)
	if err != nil {
		t.Fatalf("SentLogProb failed: %v", err)
	}
	if !math.IsInf(lp, -1) {
		t.Errorf("SentLogProb(unseen) = %g, want -Inf", lp)
	}
	if p, _ := SentProb(m, unseen); p != 0 {
		t.Errorf("SentProb(unseen) = %g, want 0", p)
	}
}

func TestPerplexity(t *testing.T) {
	bigram, err := NewMLModel(2, catSents)
	if err != nil {
		t.Fatalf("NewMLModel failed: %v", err)
	}
	trigram, err := NewMLModel(3, catSents)
	if err != nil {
		t.Fatalf("NewMLModel failed: %v", err)
	}

	// Two sentences of log-probability -2 over 12 tokens.
	h, err := CrossEntropy(bigram, catSents)
	if err != nil {
		t.Fatalf("CrossEntropy failed: %v", err)
	}
	if !approxEqual(h, 4.0/12) {
		t.Errorf("CrossEntropy = %g, want %g", h, 4.0/12)
	}
	pp2, err := Perplexity(bigram, catSents)
	if err != nil {
		t.Fatalf("Perplexity failed: %v", err)
	}
	if !approxEqual(pp2, math.Pow(2, 4.0/12)) {
		t.Errorf("Perplexity = %g, want %g", pp2, math.Pow(2, 4.0/12))
	}

	pp3, err := Perplexity(trigram, catSents)
	if err != nil {
		t.Fatalf("Perplexity failed: %v", err)
	}
	if pp3 > pp2 {
		t.Errorf("trigram perplexity %g exceeds bigram perplexity %g on training data", pp3, pp2)
	}

	inf, err := Perplexity(bigram, [][]string{{"el", "perro"}})
	if err != nil {
		t.Fatalf("Perplexity failed: %v", err)
	}
	if !math.IsInf(inf, 1) {
		t.Errorf("Perplexity(unseen) = %g, want +Inf", inf)
	}

	if _, err := Perplexity(bigram, nil); !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("Expected ErrEmptyCorpus, got %v", err)
	}
}

func TestNewModel(t *testing.T) {
	tests := []struct {
		method string
		opts   []Option
		want   string
	}{
		{MethodMLE, nil, "MLE"},
		{MethodAddOne, nil, "AddOne"},
		{"Interpolated", []Option{WithGamma(10)}, "Interpolated"},
		{MethodBackOff, []Option{WithBeta(0.5)}, "BackOff"},
		{MethodKneserNey, nil, "KneserNey"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			m, err := NewModel(tt.method, 3, catSents, tt.opts...)
			if err != nil {
				t.Fatalf("NewModel(%s) failed: %v", tt.method, err)
			}
			if m.Name() != tt.want {
				t.Errorf("Name() = %s, want %s", m.Name(), tt.want)
			}
			if m.Order() != 3 {
				t.Errorf("Order() = %d, want 3", m.Order())
			}

			if _, err := m.CondProb("el", Gram{StartMarker}); !errors.Is(err, ErrContextLength) {
				t.Errorf("Expected ErrContextLength, got %v", err)
			}
			p, err := m.CondProb(StartMarker, Gram{StartMarker, StartMarker})
			if err != nil || p != 0 {
				t.Errorf("CondProb(<s>) = %g, %v; want 0, nil", p, err)
			}
		})
	}

	if _, err := NewModel("wittenbell", 2, catSents); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("Expected ErrUnknownMethod, got %v", err)
	}
	if _, err := NewModel(MethodAddOne, 0, catSents); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("Expected ErrInvalidOrder, got %v", err)
	}
}

func TestStats(t *testing.T) {
	m, err := NewInterpolatedModel(2, catSents, WithGamma(5))
	if err != nil {
		t.Fatalf("NewInterpolatedModel failed: %v", err)
	}
	stats := Stats(m)

	if stats.N != 2 || stats.VocabularySize != 9 || stats.NGramCount != 21 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.TotalTokens != 12 || stats.Sentences != 2 {
		t.Errorf("Unexpected totals %+v", stats)
	}
	if stats.SmootherName != "Interpolated" {
		t.Errorf("SmootherName = %s", stats.SmootherName)
	}
	if stats.Gamma == nil || *stats.Gamma != 5 {
		t.Errorf("Gamma = %v, want 5", stats.Gamma)
	}
	if stats.Beta != nil || stats.Discount != nil {
		t.Errorf("Unexpected hyperparameters %+v", stats)
	}
}
