package ngram

// defaultDiscount is used when no gram occurs exactly once.
const defaultDiscount = 0.75

// KneserNeyModel implements interpolated Kneser-Ney smoothing. The empty
// context uses continuation counts N1+(•w) instead of raw frequencies, and every
// other context interpolates an absolutely discounted estimate with its suffix.
type KneserNeyModel struct {
	base
	discount          float64
	leftExt           map[string]int // N1+(•g): distinct tokens preceding g
	rightExt          map[string]int // N1+(g•): distinct vocabulary tokens following g
	continuationTotal int            // Σ_{w∈V} N1+(•w)
}

// NewKneserNeyModel trains a Kneser-Ney model of order n. The discount is
// D = n1/(n1+2·n2), taken from the count-of-counts of grams of every order.
func NewKneserNeyModel(n int, sents [][]string) (*KneserNeyModel, error) {
	counts, err := NewCountTrie(n, sents)
	if err != nil {
		return nil, err
	}

	m := &KneserNeyModel{
		base:     base{counts},
		leftExt:  make(map[string]int),
		rightExt: make(map[string]int),
	}

	n1 := counts.CountOfCounts(1)
	n2 := counts.CountOfCounts(2)
	if n1 == 0 {
		m.discount = defaultDiscount
	} else {
		m.discount = float64(n1) / float64(n1+2*n2)
	}

	for k := 1; k <= n; k++ {
		for _, gc := range counts.Grams(k) {
			if k >= 2 {
				m.leftExt[gc.Gram[1:].key()]++
			}
			if gc.Gram.LastToken() != StartMarker {
				m.rightExt[gc.Gram.Context().key()]++
			}
		}
	}
	for _, w := range counts.Vocabulary() {
		m.continuationTotal += m.leftExt[w]
	}
	return m, nil
}

// Discount returns D.
func (m *KneserNeyModel) Discount() float64 {
	return m.discount
}

// ContinuationCount returns N1+(•g), the number of distinct tokens v for which
// v+g was observed. g may hold one or more tokens.
func (m *KneserNeyModel) ContinuationCount(g Gram) int {
	return m.leftExt[g.key()]
}

func (m *KneserNeyModel) CondProb(token string, context Gram) (float64, error) {
	if err := checkContext(m.Order(), context); err != nil {
		return 0, err
	}
	if token == StartMarker {
		return 0, nil
	}
	if m.Order() == 1 {
		return m.addOne(token), nil
	}
	return m.prob(token, context), nil
}

func (m *KneserNeyModel) prob(token string, ctx Gram) float64 {
	if len(ctx) == 0 {
		if m.continuationTotal == 0 {
			return 0
		}
		return float64(m.leftExt[token]) / float64(m.continuationTotal)
	}

	c := float64(m.Count(ctx))
	if c == 0 {
		return 0
	}
	discounted := float64(m.Count(ctx.Extend(token))) - m.discount
	if discounted < 0 {
		discounted = 0
	}
	backoffWeight := m.discount * float64(m.rightExt[ctx.key()]) / c
	return discounted/c + backoffWeight*m.prob(token, ctx[1:])
}

func (m *KneserNeyModel) Name() string {
	return "KneserNey"
}
