package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ngram-lm/internal/config"
	"ngram-lm/internal/service"

	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// LanguageModelServer exposes the trained models as MCP tools
type LanguageModelServer struct {
	server       *mcp.Server
	ngramService *service.NGramService
	config       *config.Config
	logger       *zap.Logger
	handler      *mcp.StreamableHTTPHandler
	httpServer   *http.Server
}

type CondProbParams struct {
	Model   string   `json:"model" jsonschema:"id or name of the trained model"`
	Token   string   `json:"token" jsonschema:"the token whose probability is requested"`
	Context []string `json:"context,omitempty" jsonschema:"the preceding n-1 tokens"`
}

type ScoreSentenceParams struct {
	Model    string   `json:"model" jsonschema:"id or name of the trained model"`
	Sentence []string `json:"sentence" jsonschema:"sentence tokens without boundary markers"`
}

type PerplexityParams struct {
	Model     string     `json:"model" jsonschema:"id or name of the trained model"`
	Sentences [][]string `json:"sentences,omitempty" jsonschema:"test sentences as token lists"`
	Text      string     `json:"text,omitempty" jsonschema:"raw test document, tokenized with format"`
	Format    string     `json:"format,omitempty" jsonschema:"tokenizer for text: text, go, python, java, javascript or typescript"`
}

type GenerateParams struct {
	Model string `json:"model" jsonschema:"id or name of the trained model"`
	Count int    `json:"count,omitempty" jsonschema:"number of sentences to sample (default 1)"`
}

type ListModelsParams struct{}

func NewLanguageModelServer(ngramService *service.NGramService, cfg *config.Config, logger *zap.Logger) *LanguageModelServer {
	server := &LanguageModelServer{
		ngramService: ngramService,
		config:       cfg,
		logger:       logger,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "NGramLM",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "listModels",
		Description: "List the trained language models with their smoothing method, order and vocabulary statistics",
	}, server.handleListModels)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "condProb",
		Description: "Return the conditional probability of a token given its n-1 preceding tokens under a trained model",
	}, server.handleCondProb)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "scoreSentence",
		Description: "Return the base-2 log-probability and probability of a sentence under a trained model",
	}, server.handleScoreSentence)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "perplexity",
		Description: "Return the cross-entropy and perplexity of a trained model on test sentences or a raw document",
	}, server.handlePerplexity)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "generateSentence",
		Description: "Sample sentences from a trained model",
	}, server.handleGenerate)

	server.handler = mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	server.server = mcpServer
	return server
}

// Handler returns the streamable HTTP handler serving the MCP protocol
func (s *LanguageModelServer) Handler() http.Handler {
	return s.handler
}

// Start serves MCP on the configured address in the background
func (s *LanguageModelServer) Start() {
	address := s.config.Mcp.GetAddress()
	s.httpServer = &http.Server{Addr: address, Handler: s.handler}
	go func() {
		s.logger.Info("MCP server going to listen", zap.String("address", address))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("MCP server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the background MCP listener
func (s *LanguageModelServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *LanguageModelServer) handleListModels(ctx context.Context, req *mcp.CallToolRequest, args ListModelsParams) (*mcp.CallToolResult, any, error) {
	return jsonResult(s.ngramService.List())
}

func (s *LanguageModelServer) handleCondProb(ctx context.Context, req *mcp.CallToolRequest, args CondProbParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling condProb request", zap.String("model", args.Model), zap.String("token", args.Token))

	prob, err := s.ngramService.CondProb(args.Model, args.Token, args.Context)
	if err != nil {
		return s.toolError("condProb", args.Model, err)
	}
	return textResult(fmt.Sprintf("P(%s | %s) = %g", args.Token, strings.Join(args.Context, " "), prob))
}

func (s *LanguageModelServer) handleScoreSentence(ctx context.Context, req *mcp.CallToolRequest, args ScoreSentenceParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling scoreSentence request", zap.String("model", args.Model), zap.Int("tokens", len(args.Sentence)))

	score, err := s.ngramService.ScoreSentence(args.Model, args.Sentence)
	if err != nil {
		return s.toolError("scoreSentence", args.Model, err)
	}
	return jsonResult(score)
}

func (s *LanguageModelServer) handlePerplexity(ctx context.Context, req *mcp.CallToolRequest, args PerplexityParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling perplexity request", zap.String("model", args.Model))

	var (
		result *service.PerplexityResult
		err    error
	)
	if args.Text != "" {
		result, err = s.ngramService.PerplexityText(ctx, args.Model, args.Text, args.Format)
	} else {
		result, err = s.ngramService.Perplexity(args.Model, args.Sentences)
	}
	if err != nil {
		return s.toolError("perplexity", args.Model, err)
	}
	return jsonResult(result)
}

func (s *LanguageModelServer) handleGenerate(ctx context.Context, req *mcp.CallToolRequest, args GenerateParams) (*mcp.CallToolResult, any, error) {
	count := args.Count
	if count == 0 {
		count = 1
	}
	s.logger.Info("Handling generateSentence request", zap.String("model", args.Model), zap.Int("count", count))

	sents, err := s.ngramService.Generate(args.Model, count)
	if err != nil {
		return s.toolError("generateSentence", args.Model, err)
	}
	lines := make([]string, len(sents))
	for i, sent := range sents {
		lines[i] = strings.Join(sent, " ")
	}
	return textResult(strings.Join(lines, "\n"))
}

// toolError reports a failed call as tool output so the client sees the reason.
func (s *LanguageModelServer) toolError(tool, model string, err error) (*mcp.CallToolResult, any, error) {
	s.logger.Error("Tool call failed", zap.String("tool", tool), zap.String("model", model), zap.Error(err))
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s failed: %v", tool, err)}},
	}, nil, nil
}

func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return textResult(string(data))
}
