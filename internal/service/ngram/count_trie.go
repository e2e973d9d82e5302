package ngram

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
)

// bloomFalsePositiveRate sizes the negative-lookup filter in front of the trie.
const bloomFalsePositiveRate = 0.01

// trieNode represents a node in the count trie. The path from the root spells
// the gram; count is the number of times that gram was observed.
type trieNode struct {
	tokenID  uint32
	count    int64
	children map[uint32]*trieNode
}

func newTrieNode(tokenID uint32) *trieNode {
	return &trieNode{
		tokenID:  tokenID,
		children: make(map[uint32]*trieNode),
	}
}

// CountTrie stores the counts of every k-gram (0 <= k <= n) of a padded corpus
// in a trie with string interning. It is immutable once built and safe for
// concurrent readers.
type CountTrie struct {
	n             int
	root          *trieNode         // root.count is the empty gram count
	tokenToID     map[string]uint32 // String to token ID mapping
	idToToken     []string          // Token ID to string reverse mapping
	vocab         []string          // sorted, always holds EndMarker, never StartMarker
	sentences     int
	distinctGrams int
	countOfCounts map[int64]int
	seen          *bloom.BloomFilter // every stored gram of order >= 1
}

// GramCount pairs a gram with its count.
type GramCount struct {
	Gram  Gram
	Count int64
}

// NewCountTrie counts the grams of sents for an order-n model.
//
// Each sentence is padded with n-1 start markers and one end marker. Every
// window of length 1..n that ends at position p >= n-2 of the padded sentence
// is counted, and the empty gram is counted once per predicted token. This gives
// the all-start context a count equal to the number of sentences and keeps
// Count(ctx) equal to the sum of its vocabulary continuations.
func NewCountTrie(n int, sents [][]string) (*CountTrie, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidOrder, n)
	}

	t := &CountTrie{
		n:         n,
		root:      newTrieNode(0),
		tokenToID: make(map[string]uint32),
		idToToken: []string{""}, // ID 0 is reserved for root
	}

	vocab := map[string]struct{}{EndMarker: {}}
	firstCounted := n - 2
	if firstCounted < 0 {
		firstCounted = 0
	}

	for i, sent := range sents {
		for _, token := range sent {
			if token == StartMarker || token == EndMarker {
				return nil, fmt.Errorf("%w: sentence %d contains %q", ErrReservedToken, i, token)
			}
			if strings.Contains(token, keySep) {
				return nil, fmt.Errorf("%w: sentence %d token %q contains the key separator", ErrReservedToken, i, token)
			}
			vocab[token] = struct{}{}
		}

		padded := Pad(sent, n)
		ids := make([]uint32, len(padded))
		for j, token := range padded {
			ids[j] = t.internToken(token)
		}

		for start := range ids {
			current := t.root
			for k := 1; k <= n && start+k <= len(ids); k++ {
				tokenID := ids[start+k-1]
				child, exists := current.children[tokenID]
				if !exists {
					child = newTrieNode(tokenID)
					current.children[tokenID] = child
				}
				current = child
				if start+k-1 >= firstCounted {
					current.count++
				}
			}
		}
		t.root.count += int64(len(padded) - (n - 1))
		t.sentences++
	}

	t.vocab = make([]string, 0, len(vocab))
	for token := range vocab {
		t.vocab = append(t.vocab, token)
	}
	sort.Strings(t.vocab)

	t.indexGrams()
	return t, nil
}

// internToken converts a token string to its ID, creating a new ID if needed
func (t *CountTrie) internToken(token string) uint32 {
	if id, exists := t.tokenToID[token]; exists {
		return id
	}
	id := uint32(len(t.idToToken))
	t.tokenToID[token] = id
	t.idToToken = append(t.idToToken, token)
	return id
}

// indexGrams fills the count-of-counts table and the bloom filter.
func (t *CountTrie) indexGrams() {
	t.countOfCounts = make(map[int64]int)
	var keys []string
	t.walk(t.root, nil, func(g Gram, node *trieNode) {
		if node.count == 0 {
			return
		}
		t.distinctGrams++
		t.countOfCounts[node.count]++
		keys = append(keys, gramHash(g))
	})

	expected := uint(len(keys))
	if expected == 0 {
		expected = 1
	}
	t.seen = bloom.NewWithEstimates(expected, bloomFalsePositiveRate)
	for _, k := range keys {
		t.seen.AddString(k)
	}
}

// walk visits every node below node in depth-first order. The gram passed to
// visit is only valid for the duration of the call.
func (t *CountTrie) walk(node *trieNode, path Gram, visit func(Gram, *trieNode)) {
	for _, child := range node.children {
		childPath := append(path, t.idToToken[child.tokenID])
		visit(childPath, child)
		t.walk(child, childPath, visit)
	}
}

// gramHash creates a compact key for the bloom filter
func gramHash(g Gram) string {
	h := fnv.New64a()
	for _, token := range g {
		h.Write([]byte(token))
		h.Write([]byte{0}) // Separator
	}
	return string(h.Sum(nil))
}

// find returns the node for g, or nil when g was never observed.
func (t *CountTrie) find(g Gram) *trieNode {
	current := t.root
	for _, token := range g {
		id, exists := t.tokenToID[token]
		if !exists {
			return nil
		}
		child, exists := current.children[id]
		if !exists {
			return nil
		}
		current = child
	}
	return current
}

// Order returns the model order n.
func (t *CountTrie) Order() int {
	return t.n
}

// Count returns the number of occurrences of g, 0 when g was never observed.
func (t *CountTrie) Count(g Gram) int64 {
	if len(g) == 0 {
		return t.root.count
	}
	if len(g) > t.n || !t.seen.TestString(gramHash(g)) {
		return 0
	}
	node := t.find(g)
	if node == nil {
		return 0
	}
	return node.count
}

// Extensions returns, in sorted order, the vocabulary tokens w for which ctx+w
// has a positive count. The start marker is never a continuation.
func (t *CountTrie) Extensions(ctx Gram) []string {
	node := t.find(ctx)
	if node == nil {
		return nil
	}
	tokens := make([]string, 0, len(node.children))
	for id, child := range node.children {
		token := t.idToToken[id]
		if child.count > 0 && token != StartMarker {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)
	return tokens
}

// Grams returns every observed gram of length k with its count, sorted
// lexicographically by token.
func (t *CountTrie) Grams(k int) []GramCount {
	if k == 0 {
		return []GramCount{{Gram: Gram{}, Count: t.root.count}}
	}
	var out []GramCount
	t.walk(t.root, nil, func(g Gram, node *trieNode) {
		if len(g) == k && node.count > 0 {
			out = append(out, GramCount{Gram: append(Gram(nil), g...), Count: node.count})
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return lessGram(out[i].Gram, out[j].Gram)
	})
	return out
}

func lessGram(a, b Gram) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Vocabulary returns the sorted set of observed tokens, including the end marker.
func (t *CountTrie) Vocabulary() []string {
	out := make([]string, len(t.vocab))
	copy(out, t.vocab)
	return out
}

// VocabularySize returns |V|.
func (t *CountTrie) VocabularySize() int {
	return len(t.vocab)
}

// Sentences returns the number of training sentences.
func (t *CountTrie) Sentences() int {
	return t.sentences
}

// TotalTokens returns the number of predicted tokens, end markers included.
func (t *CountTrie) TotalTokens() int64 {
	return t.root.count
}

// DistinctGrams returns the number of distinct grams of order >= 1.
func (t *CountTrie) DistinctGrams() int {
	return t.distinctGrams
}

// CountOfCounts returns how many distinct grams of order >= 1 occur exactly r times.
func (t *CountTrie) CountOfCounts(r int64) int {
	return t.countOfCounts[r]
}

// MemoryStats returns memory usage statistics
func (t *CountTrie) MemoryStats() TrieMemoryStats {
	var nodeCount int64 = 1
	t.walk(t.root, nil, func(Gram, *trieNode) { nodeCount++ })

	vocabMemory := int64(0)
	for token := range t.tokenToID {
		vocabMemory += int64(len(token)) + 16 // String header + content
	}

	return TrieMemoryStats{
		VocabularySize:   len(t.vocab),
		TotalNodes:       nodeCount,
		DistinctGrams:    t.distinctGrams,
		VocabMemoryBytes: vocabMemory,
		NodeMemoryBytes:  nodeCount * 56, // Approx: tokenID(4) + count(8) + map(24) + pointers(20)
		BloomBits:        t.seen.Cap(),
	}
}

// TrieMemoryStats contains memory usage statistics
type TrieMemoryStats struct {
	VocabularySize   int   `json:"vocabulary_size"`
	TotalNodes       int64 `json:"total_nodes"`
	DistinctGrams    int   `json:"distinct_grams"`
	VocabMemoryBytes int64 `json:"vocab_memory_bytes"`
	NodeMemoryBytes  int64 `json:"node_memory_bytes"`
	BloomBits        uint  `json:"bloom_bits"`
}

// TotalMemoryBytes returns the estimated total memory usage
func (s TrieMemoryStats) TotalMemoryBytes() int64 {
	return s.VocabMemoryBytes + s.NodeMemoryBytes + int64(s.BloomBits/8)
}
