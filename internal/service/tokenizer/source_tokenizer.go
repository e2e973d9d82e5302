package tokenizer

import (
	"context"
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// sourceLanguage describes one tree-sitter grammar and how its leaf kinds
// collapse into placeholder tokens.
type sourceLanguage struct {
	name       string
	extensions []string
	grammar    func() *tree_sitter.Language
	normalize  map[string]string // node kind -> placeholder
}

var sourceLanguages = []sourceLanguage{
	{
		name:       "go",
		extensions: []string{".go"},
		grammar:    func() *tree_sitter.Language { return tree_sitter.NewLanguage(golang.Language()) },
		normalize: map[string]string{
			"identifier":                 "ID",
			"field_identifier":           "ID",
			"type_identifier":            "ID",
			"package_identifier":         "ID",
			"int_literal":                "NUM",
			"float_literal":              "NUM",
			"imaginary_literal":          "NUM",
			"raw_string_literal":         "STR",
			"interpreted_string_literal": "STR",
			"rune_literal":               "CHAR",
			"true":                       "BOOL",
			"false":                      "BOOL",
			"nil":                        "NIL",
		},
	},
	{
		name:       "python",
		extensions: []string{".py", ".pyw"},
		grammar:    func() *tree_sitter.Language { return tree_sitter.NewLanguage(python.Language()) },
		normalize: map[string]string{
			"identifier": "ID",
			"integer":    "NUM",
			"float":      "NUM",
			"string":     "STR",
			"true":       "BOOL",
			"false":      "BOOL",
			"none":       "NONE",
		},
	},
	{
		name:       "java",
		extensions: []string{".java"},
		grammar:    func() *tree_sitter.Language { return tree_sitter.NewLanguage(java.Language()) },
		normalize: map[string]string{
			"identifier":                     "ID",
			"type_identifier":                "ID",
			"decimal_integer_literal":        "NUM",
			"hex_integer_literal":            "NUM",
			"octal_integer_literal":          "NUM",
			"binary_integer_literal":         "NUM",
			"decimal_floating_point_literal": "NUM",
			"hex_floating_point_literal":     "NUM",
			"string_literal":                 "STR",
			"character_literal":              "STR",
			"true":                           "BOOL",
			"false":                          "BOOL",
			"null_literal":                   "NULL",
		},
	},
	{
		name:       "javascript",
		extensions: []string{".js", ".jsx", ".mjs"},
		grammar:    func() *tree_sitter.Language { return tree_sitter.NewLanguage(javascript.Language()) },
		normalize: map[string]string{
			"identifier":          "ID",
			"property_identifier": "ID",
			"number":              "NUM",
			"string":              "STR",
			"template_string":     "STR",
			"regex":               "REGEX",
			"true":                "BOOL",
			"false":               "BOOL",
			"null":                "NULL",
			"undefined":           "UNDEFINED",
		},
	},
	{
		name:       "typescript",
		extensions: []string{".ts", ".tsx"},
		grammar:    func() *tree_sitter.Language { return tree_sitter.NewLanguage(typescript.LanguageTypescript()) },
		normalize: map[string]string{
			"identifier":          "ID",
			"type_identifier":     "ID",
			"property_identifier": "ID",
			"number":              "NUM",
			"string":              "STR",
			"template_string":     "STR",
			"regex":               "REGEX",
			"true":                "BOOL",
			"false":               "BOOL",
			"null":                "NULL",
			"undefined":           "UNDEFINED",
		},
	},
}

// SourceTokenizer tokenizes source code with a tree-sitter grammar. Literal
// nodes are emitted whole even when the grammar gives them children.
type SourceTokenizer struct {
	name      string
	normalize map[string]string

	mu     sync.Mutex // tree-sitter parsers are not safe for concurrent use
	parser *tree_sitter.Parser
}

// NewSourceTokenizer creates a tokenizer for one of the supported languages
func NewSourceTokenizer(language string) (*SourceTokenizer, error) {
	for _, lang := range sourceLanguages {
		if lang.name != language {
			continue
		}
		parser := tree_sitter.NewParser()
		if err := parser.SetLanguage(lang.grammar()); err != nil {
			return nil, fmt.Errorf("failed to set %s language: %w", lang.name, err)
		}
		return &SourceTokenizer{
			name:      lang.name,
			normalize: lang.normalize,
			parser:    parser,
		}, nil
	}
	return nil, fmt.Errorf("unsupported source language: %s", language)
}

func (t *SourceTokenizer) Tokenize(ctx context.Context, source []byte) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	tree := t.parser.Parse(source, nil)
	t.mu.Unlock()
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s source", t.name)
	}
	defer tree.Close()

	var tokens []Token
	t.traverseNode(tree.RootNode(), source, &tokens)
	return tokens, nil
}

func (t *SourceTokenizer) traverseNode(node *tree_sitter.Node, source []byte, tokens *[]Token) {
	if node == nil {
		return
	}

	nodeType := node.Kind()
	if nodeType == "comment" || nodeType == "line_comment" || nodeType == "block_comment" {
		return
	}

	_, literal := t.normalize[nodeType]
	if node.ChildCount() == 0 || literal {
		content := node.Utf8Text(source)
		if content == "" {
			return
		}
		startPoint := node.StartPosition()
		*tokens = append(*tokens, Token{
			Type:   nodeType,
			Value:  content,
			Line:   int(startPoint.Row) + 1,
			Column: int(startPoint.Column) + 1,
		})
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		t.traverseNode(node.Child(i), source, tokens)
	}
}

// Normalize maps identifiers and literals to placeholders and keeps keywords,
// operators and punctuation as written.
func (t *SourceTokenizer) Normalize(token Token) string {
	if placeholder, ok := t.normalize[token.Type]; ok {
		return placeholder
	}
	return token.Value
}

func (t *SourceTokenizer) Language() string {
	return t.name
}
