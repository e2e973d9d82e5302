package service

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ngram-lm/internal/config"
	"ngram-lm/internal/service/ngram"
	"ngram-lm/internal/service/tokenizer"
	"ngram-lm/internal/util"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

var catSents = [][]string{
	{"el", "gato", "come", "pescado", "."},
	{"la", "gata", "come", "salmón", "."},
}

func newTestService(t *testing.T) *NGramService {
	t.Helper()
	cfg, err := config.Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	registry, err := tokenizer.NewDefaultRegistry()
	if err != nil {
		t.Fatalf("NewDefaultRegistry failed: %v", err)
	}
	return NewNGramService(cfg, registry, zap.NewNop())
}

func TestNGramService_TrainAndQuery(t *testing.T) {
	ns := newTestService(t)
	ctx := context.Background()

	info, err := ns.Train(ctx, TrainRequest{Name: "cats", Method: "MLE", Order: 2, Sentences: catSents})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if info.ID == "" || info.Name != "cats" || info.Method != ngram.MethodMLE {
		t.Fatalf("Unexpected model info %+v", info)
	}
	if info.Stats.VocabularySize != 9 {
		t.Errorf("VocabularySize = %d, want 9", info.Stats.VocabularySize)
	}

	byID, err := ns.Get(info.ID)
	if err != nil {
		t.Fatalf("Get by ID failed: %v", err)
	}
	byName, err := ns.Get("cats")
	if err != nil {
		t.Fatalf("Get by name failed: %v", err)
	}
	if byID != byName {
		t.Error("Get by ID and by name returned different models")
	}

	p, err := ns.CondProb("cats", "gato", []string{"el"})
	if err != nil {
		t.Fatalf("CondProb failed: %v", err)
	}
	if p != 1 {
		t.Errorf("CondProb(gato | el) = %g, want 1", p)
	}

	score, err := ns.ScoreSentence("cats", catSents[0])
	if err != nil {
		t.Fatalf("ScoreSentence failed: %v", err)
	}
	if score.Tokens != 6 || math.Abs(float64(score.LogProb)+2) > 1e-12 {
		t.Errorf("Unexpected score %+v", score)
	}

	result, err := ns.Perplexity("cats", catSents)
	if err != nil {
		t.Fatalf("Perplexity failed: %v", err)
	}
	if result.Tokens != 12 || math.Abs(float64(result.Perplexity)-math.Pow(2, 4.0/12)) > 1e-12 {
		t.Errorf("Unexpected perplexity %+v", result)
	}

	sents, err := ns.Generate("cats", 3)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(sents) != 3 {
		t.Fatalf("Generate returned %d sentences, want 3", len(sents))
	}
	for _, s := range sents {
		if len(s) != 5 || s[4] != "." {
			t.Errorf("Unexpected generated sentence %v", s)
		}
	}

	dist, err := ns.Distribution("cats", []string{"come"})
	if err != nil {
		t.Fatalf("Distribution failed: %v", err)
	}
	if len(dist) != 2 || dist[0].Token != "pescado" {
		t.Errorf("Unexpected distribution %v", dist)
	}
}

func TestNGramService_InfiniteScoresEncode(t *testing.T) {
	ns := newTestService(t)
	if _, err := ns.Train(context.Background(), TrainRequest{Name: "cats", Method: "mle", Order: 2, Sentences: catSents}); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	score, err := ns.ScoreSentence("cats", []string{"el", "perro"})
	if err != nil {
		t.Fatalf("ScoreSentence failed: %v", err)
	}
	data, err := json.Marshal(score)
	if err != nil {
		t.Fatalf("Failed to marshal score: %v", err)
	}
	if !strings.Contains(string(data), `"log_prob":"-Inf"`) || !strings.Contains(string(data), `"prob":0`) {
		t.Errorf("Unexpected encoding %s", data)
	}

	result, err := ns.PerplexityText(context.Background(), "cats", "el perro", "")
	if err != nil {
		t.Fatalf("PerplexityText failed: %v", err)
	}
	data, err = json.Marshal(result)
	if err != nil {
		t.Fatalf("Failed to marshal perplexity: %v", err)
	}
	if !strings.Contains(string(data), `"perplexity":"+Inf"`) {
		t.Errorf("Unexpected encoding %s", data)
	}
}

func TestNGramService_TrainFromText(t *testing.T) {
	ns := newTestService(t)

	info, err := ns.Train(context.Background(), TrainRequest{
		Method: "interpolated",
		Order:  2,
		Text:   "el gato come pescado .\nla gata come salmón .\n",
		Gamma:  util.Ptr(2.0),
	})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if info.Name != info.ID {
		t.Errorf("Name = %s, want the ID %s for an unnamed model", info.Name, info.ID)
	}
	if info.Stats.Gamma == nil || *info.Stats.Gamma != 2 {
		t.Errorf("Gamma = %v, want 2", info.Stats.Gamma)
	}
	if info.Stats.TotalTokens != 12 {
		t.Errorf("TotalTokens = %d, want 12", info.Stats.TotalTokens)
	}
}

func TestNGramService_Errors(t *testing.T) {
	ns := newTestService(t)
	ctx := context.Background()

	if _, err := ns.Train(ctx, TrainRequest{Method: "mle", Order: 2}); !errors.Is(err, ErrNoCorpus) {
		t.Errorf("Expected ErrNoCorpus, got %v", err)
	}
	if _, err := ns.Train(ctx, TrainRequest{Method: "wittenbell", Order: 2, Sentences: catSents}); !errors.Is(err, ngram.ErrUnknownMethod) {
		t.Errorf("Expected ErrUnknownMethod, got %v", err)
	}
	if _, err := ns.Get("missing"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Expected ErrModelNotFound, got %v", err)
	}

	if _, err := ns.Train(ctx, TrainRequest{Name: "cats", Method: "addone", Order: 2, Sentences: catSents}); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if _, err := ns.Generate("cats", 0); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got %v", err)
	}
	if _, err := ns.Distribution("cats", []string{"perro"}); !errors.Is(err, ngram.ErrUnknownContext) {
		t.Errorf("Expected ErrUnknownContext, got %v", err)
	}
	if _, err := ns.CondProb("cats", "el", nil); !errors.Is(err, ngram.ErrContextLength) {
		t.Errorf("Expected ErrContextLength, got %v", err)
	}
}

func TestNGramService_ListAndDelete(t *testing.T) {
	ns := newTestService(t)
	ctx := context.Background()

	first, err := ns.Train(ctx, TrainRequest{Name: "bigram", Method: "addone", Order: 2, Sentences: catSents})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if _, err := ns.Train(ctx, TrainRequest{Name: "trigram", Method: "kneserney", Order: 3, Sentences: catSents}); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if got := len(ns.List()); got != 2 {
		t.Fatalf("List returned %d models, want 2", got)
	}

	if err := ns.Delete(first.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	models := ns.List()
	if len(models) != 1 || models[0].Name != "trigram" {
		t.Errorf("Unexpected models after delete: %+v", models)
	}
	if err := ns.Delete("bigram"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Expected ErrModelNotFound, got %v", err)
	}
}

func TestNGramService_LoadModels(t *testing.T) {
	ns := newTestService(t)
	dir := t.TempDir()
	ns.workDir = dir

	writeCorpus(t, filepath.Join(dir, "cats.txt"), "el gato come pescado .\nla gata come salmón .\n")

	loaded := ns.LoadModels(context.Background(), []config.ModelSpec{
		{Name: "cats", Method: "backoff", Order: 2, Corpus: "cats.txt", Beta: util.Ptr(0.5)},
		{Name: "broken", Method: "mle", Order: 2, Corpus: "missing.txt"},
	})
	if loaded != 1 {
		t.Fatalf("LoadModels loaded %d models, want 1", loaded)
	}
	m, err := ns.Get("cats")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m.Stats.Beta == nil || *m.Stats.Beta != 0.5 {
		t.Errorf("Beta = %v, want 0.5", m.Stats.Beta)
	}
}

func writeCorpus(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write corpus: %v", err)
	}
}
