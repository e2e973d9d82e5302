package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"

	"ngram-lm/internal/config"
	"ngram-lm/internal/controller"
	"ngram-lm/internal/handler"
	"ngram-lm/internal/service"
	"ngram-lm/internal/service/tokenizer"
	"ngram-lm/pkg/mcp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	var sourceConfigPath = flag.String("source", "models.yaml", "Path to model source configuration file")
	var appConfigPath = flag.String("app", "app.yaml", "Path to app configuration file")
	var workDir = flag.String("workdir", "", "Directory relative corpus paths are resolved against")
	flag.Parse()

	cfg, err := config.LoadConfig(*appConfigPath, *sourceConfigPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	level, err := zapcore.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		log.Fatal("Invalid log level:", err)
	}
	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(level)
	cfgZap.OutputPaths = cfg.App.LogOutputs
	logger, err := cfgZap.Build()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	defer logger.Sync()

	// Override workdir from command line if provided
	if *workDir != "" {
		cfg.App.WorkDir = *workDir
	}

	logger.Info("Configuration loaded successfully", zap.Any("config", cfg))

	registry, err := tokenizer.NewDefaultRegistry()
	if err != nil {
		logger.Fatal("Failed to initialize tokenizers", zap.Error(err))
	}
	logger.Info("Tokenizers registered", zap.Strings("languages", registry.SupportedLanguages()))

	ngramService := service.NewNGramService(cfg, registry, logger)
	loaded := ngramService.LoadModels(context.Background(), cfg.Source.Models)
	logger.Info("Startup models trained",
		zap.Int("loaded", loaded),
		zap.Int("configured", len(cfg.Source.Models)))

	modelController := controller.NewModelController(ngramService, logger)
	mcpServer := mcp.NewLanguageModelServer(ngramService, cfg, logger)
	mcpServer.Start()

	router := handler.SetupRouter(modelController, logger)

	logger.Info("Starting server", zap.Int("port", cfg.App.Port))
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.App.Port), router); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
