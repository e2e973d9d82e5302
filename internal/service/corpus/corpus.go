package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ngram-lm/internal/service/ngram"
	"ngram-lm/internal/service/tokenizer"
	"ngram-lm/internal/util"

	"go.uber.org/zap"
)

// ErrNoTokenizer is returned when no tokenizer handles the requested format.
var ErrNoTokenizer = errors.New("no tokenizer for corpus format")

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, ".vscode": true, ".idea": true,
	"vendor": true, "target": true, "build": true, "dist": true,
	"__pycache__": true, ".pytest_cache": true, "coverage": true,
	"site-packages": true, ".next": true, ".nuxt": true, "venv": true, "env": true,
}

// Loader turns files and directory trees into sentences of normalized tokens.
type Loader struct {
	registry *tokenizer.Registry
	workers  int
	logger   *zap.Logger
}

// NewLoader creates a corpus loader. workers bounds concurrent file tokenization.
func NewLoader(registry *tokenizer.Registry, workers int, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{registry: registry, workers: workers, logger: logger}
}

// Load reads the corpus at path. For a single file, format selects the
// tokenizer; when empty the file extension decides and plain text is the
// fallback. For a directory, every file whose extension matches format (or any
// registered extension when format is empty) is read in lexical path order.
func (l *Loader) Load(ctx context.Context, path, format string) ([][]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat corpus: %w", err)
	}
	if !info.IsDir() {
		tok, err := l.tokenizerFor(path, format)
		if err != nil {
			return nil, err
		}
		return l.loadFile(ctx, path, tok)
	}

	files, err := l.collectFiles(path, format)
	if err != nil {
		return nil, err
	}

	results := make([][][]string, len(files))
	err = util.RunPool(len(files), l.workers, func(i int) error {
		tok, err := l.tokenizerFor(files[i], format)
		if err != nil {
			return err
		}
		sents, err := l.loadFile(ctx, files[i], tok)
		if err != nil {
			l.logger.Warn("Failed to process file",
				zap.String("path", util.ToRelativePath(path, files[i])),
				zap.Error(err),
			)
			return nil
		}
		results[i] = sents
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sents [][]string
	for _, r := range results {
		sents = append(sents, r...)
	}
	l.logger.Info("Corpus directory loaded",
		zap.String("path", path),
		zap.Int("files", len(files)),
		zap.Int("sentences", len(sents)),
	)
	return sents, nil
}

// FromText tokenizes an in-memory document with the tokenizer for format.
func (l *Loader) FromText(ctx context.Context, text, format string) ([][]string, error) {
	if format == "" {
		format = tokenizer.TextLanguage
	}
	tok, ok := l.registry.Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTokenizer, format)
	}
	sents, err := tokenizer.Sentences(ctx, tok, []byte(text))
	if err != nil {
		return nil, err
	}
	return stripReserved(sents), nil
}

func (l *Loader) tokenizerFor(path, format string) (tokenizer.Tokenizer, error) {
	if format != "" {
		tok, ok := l.registry.Get(format)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoTokenizer, format)
		}
		return tok, nil
	}
	if tok, ok := l.registry.GetByExtension(filepath.Ext(path)); ok {
		return tok, nil
	}
	tok, ok := l.registry.Get(tokenizer.TextLanguage)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTokenizer, tokenizer.TextLanguage)
	}
	return tok, nil
}

func (l *Loader) loadFile(ctx context.Context, path string, tok tokenizer.Tokenizer) ([][]string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	sents, err := tokenizer.Sentences(ctx, tok, source)
	if err != nil {
		return nil, fmt.Errorf("tokenization of %s failed: %w", path, err)
	}
	return stripReserved(sents), nil
}

func (l *Loader) collectFiles(root, format string) ([]string, error) {
	var want tokenizer.Tokenizer
	if format != "" {
		tok, ok := l.registry.Get(format)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoTokenizer, format)
		}
		want = tok
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		tok, ok := l.registry.GetByExtension(filepath.Ext(path))
		if !ok {
			return nil
		}
		if want != nil && tok.Language() != want.Language() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// stripReserved drops boundary markers that appear literally in the input.
func stripReserved(sents [][]string) [][]string {
	out := sents[:0]
	for _, sent := range sents {
		kept := sent[:0]
		for _, token := range sent {
			if token == ngram.StartMarker || token == ngram.EndMarker || strings.TrimSpace(token) == "" {
				continue
			}
			kept = append(kept, token)
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}
