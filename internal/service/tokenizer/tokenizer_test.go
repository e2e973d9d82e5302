package tokenizer

import (
	"context"
	"reflect"
	"testing"
)

func TestTextTokenizer_Tokenize(t *testing.T) {
	tok := NewTextTokenizer()

	tokens, err := tok.Tokenize(context.Background(), []byte("el gato\n\n  come pescado .\n"))
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	if len(tokens) != 5 {
		t.Fatalf("Expected 5 tokens, got %d", len(tokens))
	}
	if tokens[2].Value != "come" || tokens[2].Line != 3 || tokens[2].Column != 3 {
		t.Errorf("Unexpected token %+v", tokens[2])
	}
	if tokens[4].Value != "." || tokens[4].Column != 16 {
		t.Errorf("Unexpected token %+v", tokens[4])
	}
}

func TestSentences_GroupsByLine(t *testing.T) {
	sents, err := Sentences(context.Background(), NewTextTokenizer(), []byte("el gato\n\n  come pescado .\n"))
	if err != nil {
		t.Fatalf("Sentences failed: %v", err)
	}
	want := [][]string{{"el", "gato"}, {"come", "pescado", "."}}
	if !reflect.DeepEqual(sents, want) {
		t.Errorf("Sentences = %v, want %v", sents, want)
	}
}

func TestSentences_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tok, err := NewSourceTokenizer("go")
	if err != nil {
		t.Fatalf("NewSourceTokenizer failed: %v", err)
	}
	if _, err := Sentences(ctx, tok, []byte("package main\n")); err == nil {
		t.Error("Expected error for a cancelled context")
	}
}

func TestSourceTokenizer_Go(t *testing.T) {
	tok, err := NewSourceTokenizer("go")
	if err != nil {
		t.Fatalf("NewSourceTokenizer failed: %v", err)
	}

	source := []byte("package main\n\n// answer returns a constant\nfunc answer() int {\n\treturn 42\n}\n")
	sents, err := Sentences(context.Background(), tok, source)
	if err != nil {
		t.Fatalf("Sentences failed: %v", err)
	}
	if len(sents) == 0 || !reflect.DeepEqual(sents[0], []string{"package", "ID"}) {
		t.Fatalf("Unexpected first sentence in %v", sents)
	}

	foundReturn := false
	for _, sent := range sents {
		if reflect.DeepEqual(sent, []string{"return", "NUM"}) {
			foundReturn = true
		}
		for _, w := range sent {
			if w == "main" || w == "answer" || w == "42" || w == "constant" {
				t.Errorf("token %q was not normalized away in %v", w, sent)
			}
		}
	}
	if !foundReturn {
		t.Errorf("Expected a [return NUM] sentence in %v", sents)
	}
}

func TestSourceTokenizer_StringLiteralIsOneToken(t *testing.T) {
	tok, err := NewSourceTokenizer("python")
	if err != nil {
		t.Fatalf("NewSourceTokenizer failed: %v", err)
	}

	sents, err := Sentences(context.Background(), tok, []byte("x = \"hello world\"\n"))
	if err != nil {
		t.Fatalf("Sentences failed: %v", err)
	}
	want := [][]string{{"ID", "=", "STR"}}
	if !reflect.DeepEqual(sents, want) {
		t.Errorf("Sentences = %v, want %v", sents, want)
	}
}

func TestNewSourceTokenizer_Unsupported(t *testing.T) {
	if _, err := NewSourceTokenizer("cobol"); err == nil {
		t.Error("Expected error for an unsupported language")
	}
}

func TestRegistry(t *testing.T) {
	r, err := NewDefaultRegistry()
	if err != nil {
		t.Fatalf("NewDefaultRegistry failed: %v", err)
	}

	want := []string{"go", "java", "javascript", "python", "text", "typescript"}
	if got := r.SupportedLanguages(); !reflect.DeepEqual(got, want) {
		t.Errorf("SupportedLanguages() = %v, want %v", got, want)
	}

	tests := []struct {
		ext  string
		want string
	}{
		{".go", "go"},
		{".PY", "python"},
		{".tsx", "typescript"},
		{".txt", TextLanguage},
	}
	for _, tt := range tests {
		tok, ok := r.GetByExtension(tt.ext)
		if !ok {
			t.Errorf("GetByExtension(%s) found nothing", tt.ext)
			continue
		}
		if tok.Language() != tt.want {
			t.Errorf("GetByExtension(%s) = %s, want %s", tt.ext, tok.Language(), tt.want)
		}
	}

	if _, ok := r.GetByExtension(".rs"); ok {
		t.Error("Expected no tokenizer for .rs")
	}
	if tok, ok := r.Get("Java"); !ok || tok.Language() != "java" {
		t.Error("Get should be case-insensitive")
	}
}
