package tokenizer

import (
	"context"
	"sort"
	"strings"
)

// Token represents a single lexical token
type Token struct {
	Type   string // Token type (e.g., "identifier", "number", "word")
	Value  string // Original token value
	Line   int    // Line number in source
	Column int    // Column number in source
}

// Tokenizer defines the interface for language-specific tokenization
type Tokenizer interface {
	// Tokenize converts source into a sequence of tokens
	Tokenize(ctx context.Context, source []byte) ([]Token, error)

	// Normalize applies language-specific normalization (e.g., all identifiers -> "ID")
	Normalize(token Token) string

	// Language returns the language this tokenizer handles
	Language() string
}

// Sentences tokenizes source and groups the normalized tokens by starting line.
// Lines without tokens are dropped.
func Sentences(ctx context.Context, t Tokenizer, source []byte) ([][]string, error) {
	tokens, err := t.Tokenize(ctx, source)
	if err != nil {
		return nil, err
	}

	var sents [][]string
	line := -1
	for _, tok := range tokens {
		value := t.Normalize(tok)
		if strings.TrimSpace(value) == "" {
			continue
		}
		if tok.Line != line || len(sents) == 0 {
			sents = append(sents, nil)
			line = tok.Line
		}
		sents[len(sents)-1] = append(sents[len(sents)-1], value)
	}
	return sents, nil
}

// Registry manages tokenizers for different languages
type Registry struct {
	tokenizers map[string]Tokenizer
	extensions map[string]string // file extension -> language
}

// NewRegistry creates an empty tokenizer registry
func NewRegistry() *Registry {
	return &Registry{
		tokenizers: make(map[string]Tokenizer),
		extensions: make(map[string]string),
	}
}

// NewDefaultRegistry returns a registry with the text tokenizer and every
// tree-sitter language registered.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	r.Register(NewTextTokenizer(), []string{".txt"})
	for _, lang := range sourceLanguages {
		t, err := NewSourceTokenizer(lang.name)
		if err != nil {
			return nil, err
		}
		r.Register(t, lang.extensions)
	}
	return r, nil
}

// Register adds a tokenizer for its language
func (r *Registry) Register(tokenizer Tokenizer, extensions []string) {
	language := tokenizer.Language()
	r.tokenizers[language] = tokenizer
	for _, ext := range extensions {
		r.extensions[ext] = language
	}
}

// Get returns the tokenizer for a given language
func (r *Registry) Get(language string) (Tokenizer, bool) {
	tokenizer, ok := r.tokenizers[strings.ToLower(language)]
	return tokenizer, ok
}

// GetByExtension returns the tokenizer for a given file extension
func (r *Registry) GetByExtension(extension string) (Tokenizer, bool) {
	language, ok := r.extensions[strings.ToLower(extension)]
	if !ok {
		return nil, false
	}
	return r.Get(language)
}

// SupportedLanguages returns a sorted list of all supported languages
func (r *Registry) SupportedLanguages() []string {
	languages := make([]string, 0, len(r.tokenizers))
	for lang := range r.tokenizers {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}
