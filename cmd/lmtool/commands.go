package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"ngram-lm/internal/service/ngram"

	"github.com/urfave/cli/v3"
)

var (
	testPath   string
	count      int64
	seed       int64
	maxTokens  int64
	token      string
	contextArg string
)

func trainCmd() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "Train a model and print its statistics",
		Flags: modelFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := newLogger()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer logger.Sync()

			model, _, err := trainModel(ctx, cmd, logger)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			stats := ngram.Stats(model)
			memory := model.Counts().MemoryStats()

			var b strings.Builder
			fmt.Fprintf(&b, "method:      %s\n", stats.SmootherName)
			fmt.Fprintf(&b, "order:       %d\n", stats.N)
			fmt.Fprintf(&b, "sentences:   %d\n", stats.Sentences)
			fmt.Fprintf(&b, "tokens:      %d\n", stats.TotalTokens)
			fmt.Fprintf(&b, "vocabulary:  %d\n", stats.VocabularySize)
			fmt.Fprintf(&b, "grams:       %d\n", stats.NGramCount)
			fmt.Fprintf(&b, "memory:      %d bytes", memory.TotalMemoryBytes())
			if stats.Gamma != nil {
				fmt.Fprintf(&b, "\ngamma:       %g", *stats.Gamma)
			}
			if stats.Beta != nil {
				fmt.Fprintf(&b, "\nbeta:        %g", *stats.Beta)
			}
			if stats.Discount != nil {
				fmt.Fprintf(&b, "\ndiscount:    %g", *stats.Discount)
			}
			return printResult(struct {
				ngram.ModelStats
				Memory ngram.TrieMemoryStats `json:"memory"`
			}{stats, memory}, b.String())
		},
	}
}

func evalCmd() *cli.Command {
	flags := append(modelFlags(),
		&cli.StringFlag{
			Name:        "test",
			Aliases:     []string{"t"},
			Usage:       "test corpus, read with the same format as the training corpus",
			Required:    true,
			Destination: &testPath,
		},
	)
	return &cli.Command{
		Name:  "eval",
		Usage: "Train a model and report its perplexity on a test corpus",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := newLogger()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer logger.Sync()

			model, loader, err := trainModel(ctx, cmd, logger)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			test, err := loader.Load(ctx, testPath, corpusFormat)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			h, err := ngram.CrossEntropy(model, test)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			pp := math.Pow(2, h)

			result := map[string]any{
				"model":      model.Name(),
				"order":      model.Order(),
				"sentences":  len(test),
				"infinite":   math.IsInf(pp, 1),
				"perplexity": finite(pp),
				"entropy":    finite(h),
			}
			text := fmt.Sprintf("%s n=%d: cross-entropy %.4f bits, perplexity %.4f over %d sentences",
				model.Name(), model.Order(), h, pp, len(test))
			return printResult(result, text)
		},
	}
}

func generateCmd() *cli.Command {
	flags := append(modelFlags(),
		&cli.Int64Flag{
			Name:        "count",
			Usage:       "number of sentences to sample",
			Value:       1,
			Destination: &count,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "random seed (0 = time based)",
			Destination: &seed,
		},
		&cli.Int64Flag{
			Name:        "max-tokens",
			Usage:       "fail a sentence longer than this many tokens (0 = unbounded)",
			Destination: &maxTokens,
		},
	)
	return &cli.Command{
		Name:  "generate",
		Usage: "Train a model and sample sentences from it",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := newLogger()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer logger.Sync()

			model, _, err := trainModel(ctx, cmd, logger)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			s := seed
			if s == 0 {
				s = time.Now().UnixNano()
			}
			gen, err := ngram.NewGenerator(model, rand.New(rand.NewSource(s)), ngram.WithMaxTokens(int(maxTokens)))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			sents := make([][]string, 0, count)
			lines := make([]string, 0, count)
			for i := int64(0); i < count; i++ {
				sent, err := gen.GenerateSent()
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				sents = append(sents, sent)
				lines = append(lines, strings.Join(sent, " "))
			}
			return printResult(map[string]any{"seed": s, "sentences": sents}, strings.Join(lines, "\n"))
		},
	}
}

func probCmd() *cli.Command {
	flags := append(modelFlags(),
		&cli.StringFlag{
			Name:        "token",
			Usage:       "token whose conditional probability is printed",
			Required:    true,
			Destination: &token,
		},
		&cli.StringFlag{
			Name:        "context",
			Usage:       "space-separated n-1 preceding tokens",
			Destination: &contextArg,
		},
	)
	return &cli.Command{
		Name:  "prob",
		Usage: "Train a model and print P(token | context)",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := newLogger()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer logger.Sync()

			model, _, err := trainModel(ctx, cmd, logger)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			history := ngram.Gram(strings.Fields(contextArg))
			p, err := model.CondProb(token, history)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return printResult(map[string]any{
				"token":   token,
				"context": history,
				"prob":    p,
			}, fmt.Sprintf("P(%s | %s) = %g", token, history.String(), p))
		},
	}
}

// finite maps infinities to nil so JSON encoding does not fail.
func finite(f float64) any {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return f
}
