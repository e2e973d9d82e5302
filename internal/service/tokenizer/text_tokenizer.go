package tokenizer

import (
	"bufio"
	"bytes"
	"context"
	"strings"
)

// TextLanguage is the language name of plain whitespace-separated text.
const TextLanguage = "text"

// TextTokenizer splits plain text on whitespace; every line is one sentence.
type TextTokenizer struct{}

// NewTextTokenizer creates a new text tokenizer
func NewTextTokenizer() *TextTokenizer {
	return &TextTokenizer{}
}

func (t *TextTokenizer) Tokenize(ctx context.Context, source []byte) ([]Token, error) {
	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var tokens []Token
	line := 0
	for scanner.Scan() {
		line++
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		text := scanner.Text()
		column := 0
		for _, field := range strings.Fields(text) {
			idx := strings.Index(text[column:], field)
			column += idx
			tokens = append(tokens, Token{
				Type:   "word",
				Value:  field,
				Line:   line,
				Column: column + 1,
			})
			column += len(field)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Normalize returns the word unchanged
func (t *TextTokenizer) Normalize(token Token) string {
	return token.Value
}

func (t *TextTokenizer) Language() string {
	return TextLanguage
}
