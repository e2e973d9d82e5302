package ngram

// AddOneModel implements add-one (Laplace) smoothing
type AddOneModel struct {
	base
}

// NewAddOneModel trains a Laplace-smoothed model of order n.
func NewAddOneModel(n int, sents [][]string) (*AddOneModel, error) {
	counts, err := NewCountTrie(n, sents)
	if err != nil {
		return nil, err
	}
	return &AddOneModel{base{counts}}, nil
}

// CondProb returns (Count(context+token)+1) / (Count(context)+|V|).
func (m *AddOneModel) CondProb(token string, context Gram) (float64, error) {
	if err := checkContext(m.Order(), context); err != nil {
		return 0, err
	}
	if token == StartMarker {
		return 0, nil
	}
	numerator := float64(m.Count(context.Extend(token)) + 1)
	denominator := float64(m.Count(context) + int64(m.V()))
	return numerator / denominator, nil
}

func (m *AddOneModel) Name() string {
	return "AddOne"
}
