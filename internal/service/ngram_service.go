package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"ngram-lm/internal/config"
	"ngram-lm/internal/service/corpus"
	"ngram-lm/internal/service/ngram"
	"ngram-lm/internal/service/tokenizer"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrModelNotFound is returned when no model matches an ID or name.
	ErrModelNotFound = errors.New("model not found")

	// ErrNoCorpus is returned when a train request carries no training data.
	ErrNoCorpus = errors.New("train request has no corpus")

	// ErrInvalidRequest is returned for malformed query arguments.
	ErrInvalidRequest = errors.New("invalid request")
)

// Score is a float that survives JSON encoding when infinite.
type Score float64

func (s Score) MarshalJSON() ([]byte, error) {
	f := float64(s)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// TrainRequest describes a model to train. Exactly one of Sentences, Text or
// CorpusPath supplies the training data.
type TrainRequest struct {
	Name       string     `json:"name"`
	Method     string     `json:"method"`
	Order      int        `json:"order"`
	Sentences  [][]string `json:"sentences,omitempty"`
	Text       string     `json:"text,omitempty"`
	CorpusPath string     `json:"corpus_path,omitempty"`
	Format     string     `json:"format,omitempty"`
	Gamma      *float64   `json:"gamma,omitempty"`
	Beta       *float64   `json:"beta,omitempty"`
}

// ModelInfo describes a trained model
type ModelInfo struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Method    string           `json:"method"`
	CreatedAt time.Time        `json:"created_at"`
	Stats     ngram.ModelStats `json:"stats"`
}

// TrainedModel is a registry entry: the model plus its sentence generator.
type TrainedModel struct {
	ModelInfo
	Model     ngram.Model
	Generator *ngram.Generator
}

// SentenceScore contains the probability of one sentence
type SentenceScore struct {
	Tokens  int   `json:"tokens"`
	LogProb Score `json:"log_prob"`
	Prob    Score `json:"prob"`
}

// PerplexityResult contains the fit of a model on a test corpus
type PerplexityResult struct {
	Sentences    int   `json:"sentences"`
	Tokens       int   `json:"tokens"`
	CrossEntropy Score `json:"cross_entropy"`
	Perplexity   Score `json:"perplexity"`
}

// NGramService trains language models and answers queries against them
type NGramService struct {
	models    map[string]*TrainedModel // id -> model
	loader    *corpus.Loader
	workDir   string
	search    config.SearchConfig
	generator config.GeneratorConfig
	seeds     int64
	logger    *zap.Logger
	mu        sync.RWMutex
}

// NewNGramService creates a new n-gram service
func NewNGramService(cfg *config.Config, registry *tokenizer.Registry, logger *zap.Logger) *NGramService {
	return &NGramService{
		models:    make(map[string]*TrainedModel),
		loader:    corpus.NewLoader(registry, cfg.App.NumFileThreads, logger),
		workDir:   cfg.App.WorkDir,
		search:    cfg.Search,
		generator: cfg.Generator,
		logger:    logger,
	}
}

// LoadModels trains every model listed in specs. Failures are logged and
// skipped; the number of models trained is returned.
func (ns *NGramService) LoadModels(ctx context.Context, specs []config.ModelSpec) int {
	loaded := 0
	for _, spec := range specs {
		info, err := ns.Train(ctx, TrainRequest{
			Name:       spec.Name,
			Method:     spec.Method,
			Order:      spec.Order,
			CorpusPath: spec.Corpus,
			Format:     spec.Format,
			Gamma:      spec.Gamma,
			Beta:       spec.Beta,
		})
		if err != nil {
			ns.logger.Error("Failed to train configured model",
				zap.String("model", spec.Name),
				zap.Error(err))
			continue
		}
		ns.logger.Info("Configured model ready",
			zap.String("model", info.Name),
			zap.String("id", info.ID))
		loaded++
	}
	return loaded
}

// Train builds a model and registers it under a fresh ID
func (ns *NGramService) Train(ctx context.Context, req TrainRequest) (*ModelInfo, error) {
	req.Method = strings.ToLower(req.Method)
	sents, err := ns.resolveCorpus(ctx, req)
	if err != nil {
		return nil, err
	}

	ns.logger.Info("Training n-gram model",
		zap.String("name", req.Name),
		zap.String("method", req.Method),
		zap.Int("n", req.Order),
		zap.Int("sentences", len(sents)),
	)
	start := time.Now()

	model, err := ngram.NewModel(req.Method, req.Order, sents, ns.modelOptions(req)...)
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}

	ns.mu.Lock()
	ns.seeds++
	seed := ns.generator.Seed + ns.seeds - 1
	ns.mu.Unlock()

	gen, err := ngram.NewGenerator(model, rand.New(rand.NewSource(seed)), ngram.WithMaxTokens(ns.generator.MaxTokens))
	if err != nil {
		return nil, fmt.Errorf("failed to build generator: %w", err)
	}

	name := req.Name
	id := uuid.NewString()
	if name == "" {
		name = id
	}
	entry := &TrainedModel{
		ModelInfo: ModelInfo{
			ID:        id,
			Name:      name,
			Method:    req.Method,
			CreatedAt: time.Now(),
			Stats:     ngram.Stats(model),
		},
		Model:     model,
		Generator: gen,
	}

	ns.mu.Lock()
	ns.models[id] = entry
	ns.mu.Unlock()

	ns.logger.Info("Model trained",
		zap.String("id", id),
		zap.String("name", name),
		zap.Int("vocabulary", entry.Stats.VocabularySize),
		zap.Int("ngrams", entry.Stats.NGramCount),
		zap.Int("contexts", gen.Contexts()),
		zap.Duration("elapsed", time.Since(start)),
	)

	info := entry.ModelInfo
	return &info, nil
}

func (ns *NGramService) resolveCorpus(ctx context.Context, req TrainRequest) ([][]string, error) {
	switch {
	case len(req.Sentences) > 0:
		return req.Sentences, nil
	case req.Text != "":
		return ns.loader.FromText(ctx, req.Text, req.Format)
	case req.CorpusPath != "":
		path := req.CorpusPath
		if !filepath.IsAbs(path) && ns.workDir != "" {
			path = filepath.Join(ns.workDir, path)
		}
		return ns.loader.Load(ctx, path, req.Format)
	default:
		return nil, ErrNoCorpus
	}
}

func (ns *NGramService) modelOptions(req TrainRequest) []ngram.Option {
	opts := []ngram.Option{
		ngram.WithLogger(ns.logger),
		ngram.WithSearchWorkers(ns.search.Workers),
	}
	if req.Gamma != nil {
		opts = append(opts, ngram.WithGamma(*req.Gamma))
	}
	if req.Beta != nil {
		opts = append(opts, ngram.WithBeta(*req.Beta))
	}
	switch req.Method {
	case ngram.MethodInterpolated:
		if len(ns.search.GammaGrid) > 0 {
			opts = append(opts, ngram.WithGrid(ns.search.GammaGrid))
		}
	case ngram.MethodBackOff:
		if len(ns.search.BetaGrid) > 0 {
			opts = append(opts, ngram.WithGrid(ns.search.BetaGrid))
		}
	}
	return opts
}

// Get returns the model with the given ID, or else the most recent model with
// that name.
func (ns *NGramService) Get(idOrName string) (*TrainedModel, error) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	if m, ok := ns.models[idOrName]; ok {
		return m, nil
	}
	var found *TrainedModel
	for _, m := range ns.models {
		if m.Name == idOrName && (found == nil || m.CreatedAt.After(found.CreatedAt)) {
			found = m
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, idOrName)
	}
	return found, nil
}

// List returns every registered model ordered by creation time
func (ns *NGramService) List() []ModelInfo {
	ns.mu.RLock()
	infos := make([]ModelInfo, 0, len(ns.models))
	for _, m := range ns.models {
		infos = append(infos, m.ModelInfo)
	}
	ns.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Delete removes a model from the registry
func (ns *NGramService) Delete(idOrName string) error {
	m, err := ns.Get(idOrName)
	if err != nil {
		return err
	}
	ns.mu.Lock()
	delete(ns.models, m.ID)
	ns.mu.Unlock()

	ns.logger.Info("Model deleted", zap.String("id", m.ID), zap.String("name", m.Name))
	return nil
}

// CondProb returns P(token | context) under the model
func (ns *NGramService) CondProb(idOrName, token string, context []string) (float64, error) {
	m, err := ns.Get(idOrName)
	if err != nil {
		return 0, err
	}
	return m.Model.CondProb(token, ngram.Gram(context))
}

// ScoreSentence returns the probability of a sentence (without boundary markers)
func (ns *NGramService) ScoreSentence(idOrName string, sentence []string) (*SentenceScore, error) {
	m, err := ns.Get(idOrName)
	if err != nil {
		return nil, err
	}
	lp, err := ngram.SentLogProb(m.Model, sentence)
	if err != nil {
		return nil, err
	}
	return &SentenceScore{
		Tokens:  len(sentence) + 1,
		LogProb: Score(lp),
		Prob:    Score(math.Exp2(lp)),
	}, nil
}

// Perplexity evaluates a model on test sentences
func (ns *NGramService) Perplexity(idOrName string, sents [][]string) (*PerplexityResult, error) {
	m, err := ns.Get(idOrName)
	if err != nil {
		return nil, err
	}
	h, err := ngram.CrossEntropy(m.Model, sents)
	if err != nil {
		return nil, err
	}
	tokens := 0
	for _, s := range sents {
		tokens += len(s) + 1
	}
	return &PerplexityResult{
		Sentences:    len(sents),
		Tokens:       tokens,
		CrossEntropy: Score(h),
		Perplexity:   Score(math.Pow(2, h)),
	}, nil
}

// PerplexityText tokenizes text with the tokenizer for format and evaluates it
func (ns *NGramService) PerplexityText(ctx context.Context, idOrName, text, format string) (*PerplexityResult, error) {
	sents, err := ns.loader.FromText(ctx, text, format)
	if err != nil {
		return nil, err
	}
	return ns.Perplexity(idOrName, sents)
}

// Generate samples count sentences from the model
func (ns *NGramService) Generate(idOrName string, count int) ([][]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", ErrInvalidRequest, count)
	}
	m, err := ns.Get(idOrName)
	if err != nil {
		return nil, err
	}
	sents := make([][]string, 0, count)
	for i := 0; i < count; i++ {
		sent, err := m.Generator.GenerateSent()
		if err != nil {
			return nil, err
		}
		if sent == nil {
			sent = []string{}
		}
		sents = append(sents, sent)
	}
	return sents, nil
}

// Distribution returns the sorted sampling distribution of a context
func (ns *NGramService) Distribution(idOrName string, context []string) ([]ngram.Outcome, error) {
	m, err := ns.Get(idOrName)
	if err != nil {
		return nil, err
	}
	return m.Generator.Distribution(ngram.Gram(context))
}
