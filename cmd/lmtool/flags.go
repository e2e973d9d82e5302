package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ngram-lm/internal/config"
	"ngram-lm/internal/service/corpus"
	"ngram-lm/internal/service/ngram"
	"ngram-lm/internal/service/tokenizer"
	"ngram-lm/internal/util"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	modelsPath    string
	modelName     string
	corpusPath    string
	corpusFormat  string
	method        string
	order         int64
	gamma         float64
	beta          float64
	searchWorkers int64
	fileThreads   int64
	logLevel      string
	jsonOutput    bool
)

func modelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "models",
			Usage:       "model source config (YAML) holding named model specs",
			Value:       "models.yaml",
			Destination: &modelsPath,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "train the named model from --models; other flags override its fields",
			Destination: &modelName,
		},
		&cli.StringFlag{
			Name:        "corpus",
			Aliases:     []string{"c"},
			Usage:       "training corpus: a text file (one sentence per line) or a source directory",
			Destination: &corpusPath,
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "corpus format (text, go, python, java, javascript, typescript); empty picks by extension",
			Destination: &corpusFormat,
		},
		&cli.StringFlag{
			Name:        "method",
			Aliases:     []string{"m"},
			Usage:       "smoothing method (mle, addone, interpolated, backoff, kneserney)",
			Value:       ngram.MethodAddOne,
			Destination: &method,
		},
		&cli.Int64Flag{
			Name:        "order",
			Aliases:     []string{"n"},
			Usage:       "n-gram order",
			Value:       2,
			Destination: &order,
		},
		&cli.Float64Flag{
			Name:        "gamma",
			Usage:       "interpolation hyperparameter; searched on held-out data when unset",
			Destination: &gamma,
		},
		&cli.Float64Flag{
			Name:        "beta",
			Usage:       "back-off discount in [0, 1]; searched on held-out data when unset",
			Destination: &beta,
		},
		&cli.Int64Flag{
			Name:        "search-workers",
			Usage:       "candidates evaluated concurrently during the held-out search",
			Value:       1,
			Destination: &searchWorkers,
		},
		&cli.Int64Flag{
			Name:        "file-threads",
			Usage:       "files tokenized concurrently when the corpus is a directory",
			Value:       2,
			Destination: &fileThreads,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "warn",
			Destination: &logLevel,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "print results as JSON",
			Destination: &jsonOutput,
		},
	}
}

func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(level)
	cfgZap.OutputPaths = []string{"stderr"}
	return cfgZap.Build()
}

func newLoader(logger *zap.Logger) (*corpus.Loader, error) {
	registry, err := tokenizer.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}
	return corpus.NewLoader(registry, int(fileThreads), logger), nil
}

// modelSpec resolves the model to train. With --model the named spec from
// --models is the base and only flags set on the command line replace its
// fields; otherwise the flags describe the whole model.
func modelSpec(cmd *cli.Command) (config.ModelSpec, error) {
	spec := config.ModelSpec{
		Method: method,
		Order:  int(order),
		Corpus: corpusPath,
		Format: corpusFormat,
	}
	if modelName != "" {
		cfg, err := config.LoadSource(modelsPath)
		if err != nil {
			return config.ModelSpec{}, err
		}
		named, err := cfg.GetModel(modelName)
		if err != nil {
			return config.ModelSpec{}, err
		}
		base := *named
		if cmd.IsSet("method") {
			base.Method = spec.Method
		}
		if cmd.IsSet("order") {
			base.Order = spec.Order
		}
		if cmd.IsSet("corpus") {
			base.Corpus = spec.Corpus
		}
		if cmd.IsSet("format") {
			base.Format = spec.Format
		}
		spec = base
	}
	if cmd.IsSet("gamma") {
		spec.Gamma = util.Ptr(gamma)
	}
	if cmd.IsSet("beta") {
		spec.Beta = util.Ptr(beta)
	}
	if spec.Corpus == "" {
		return config.ModelSpec{}, errors.New("no corpus: set --corpus or pick a --model")
	}
	return spec, nil
}

// trainModel loads the corpus named by the resolved spec and trains the model.
func trainModel(ctx context.Context, cmd *cli.Command, logger *zap.Logger) (ngram.Model, *corpus.Loader, error) {
	spec, err := modelSpec(cmd)
	if err != nil {
		return nil, nil, err
	}
	// eval reads its test corpus with the training format.
	corpusFormat = spec.Format

	loader, err := newLoader(logger)
	if err != nil {
		return nil, nil, err
	}
	sents, err := loader.Load(ctx, spec.Corpus, spec.Format)
	if err != nil {
		return nil, nil, err
	}

	opts := []ngram.Option{
		ngram.WithLogger(logger),
		ngram.WithSearchWorkers(int(searchWorkers)),
	}
	if spec.Gamma != nil {
		opts = append(opts, ngram.WithGamma(*spec.Gamma))
	}
	if spec.Beta != nil {
		opts = append(opts, ngram.WithBeta(*spec.Beta))
	}

	model, err := ngram.NewModel(spec.Method, spec.Order, sents, opts...)
	if err != nil {
		return nil, nil, err
	}
	return model, loader, nil
}

// printResult writes v as JSON when --json is set, otherwise the text form.
func printResult(v any, text string) error {
	if !jsonOutput {
		_, err := fmt.Fprintln(os.Stdout, text)
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
