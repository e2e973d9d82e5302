package ngram

import "strings"

// Reserved sentence boundary markers.
const (
	StartMarker = "<s>"
	EndMarker   = "</s>"
)

// keySep joins gram tokens into map keys. NewCountTrie rejects tokens that
// contain it.
const keySep = "\x1f"

// Gram is an ordered, fixed-length sequence of tokens. The empty gram is the
// unconditional context.
type Gram []string

// String returns the gram as a space-separated string
func (g Gram) String() string {
	return strings.Join(g, " ")
}

// Context returns the gram without its last token
func (g Gram) Context() Gram {
	if len(g) <= 1 {
		return Gram{}
	}
	return g[:len(g)-1]
}

// LastToken returns the last token in the gram
func (g Gram) LastToken() string {
	if len(g) == 0 {
		return ""
	}
	return g[len(g)-1]
}

// Extend returns a copy of g with token appended. g itself is never modified.
func (g Gram) Extend(token string) Gram {
	out := make(Gram, len(g)+1)
	copy(out, g)
	out[len(g)] = token
	return out
}

func (g Gram) key() string {
	return strings.Join(g, keySep)
}

// Pad surrounds a sentence with n-1 start markers and one end marker.
func Pad(sent []string, n int) []string {
	pre := n - 1
	if pre < 0 {
		pre = 0
	}
	padded := make([]string, 0, len(sent)+pre+1)
	for i := 0; i < pre; i++ {
		padded = append(padded, StartMarker)
	}
	padded = append(padded, sent...)
	return append(padded, EndMarker)
}

// startContext returns the context every padded sentence begins with.
func startContext(n int) Gram {
	ctx := make(Gram, n-1)
	for i := range ctx {
		ctx[i] = StartMarker
	}
	return ctx
}
