package controller

import (
	"errors"
	"net/http"

	"ngram-lm/internal/service"
	"ngram-lm/internal/service/corpus"
	"ngram-lm/internal/service/ngram"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxGenerateCount caps the sentences returned by one generate call.
const maxGenerateCount = 100

type ModelController struct {
	ngramService *service.NGramService
	logger       *zap.Logger
}

func NewModelController(ngramService *service.NGramService, logger *zap.Logger) *ModelController {
	return &ModelController{
		ngramService: ngramService,
		logger:       logger,
	}
}

type CondProbRequest struct {
	Token   string   `json:"token" binding:"required"`
	Context []string `json:"context"`
}

type ScoreRequest struct {
	Sentence []string `json:"sentence"`
}

type PerplexityRequest struct {
	Sentences [][]string `json:"sentences"`
	Text      string     `json:"text"`
	Format    string     `json:"format"`
}

type GenerateRequest struct {
	Count int `json:"count"`
}

type DistributionRequest struct {
	Context []string `json:"context"`
}

func (mc *ModelController) Train(c *gin.Context) {
	var request service.TrainRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		mc.invalidPayload(c, err)
		return
	}

	info, err := mc.ngramService.Train(c.Request.Context(), request)
	if err != nil {
		mc.fail(c, "Failed to train model", err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (mc *ModelController) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": mc.ngramService.List()})
}

func (mc *ModelController) Get(c *gin.Context) {
	m, err := mc.ngramService.Get(c.Param("id"))
	if err != nil {
		mc.fail(c, "Failed to get model", err)
		return
	}
	c.JSON(http.StatusOK, m.ModelInfo)
}

func (mc *ModelController) Delete(c *gin.Context) {
	if err := mc.ngramService.Delete(c.Param("id")); err != nil {
		mc.fail(c, "Failed to delete model", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (mc *ModelController) CondProb(c *gin.Context) {
	var request CondProbRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		mc.invalidPayload(c, err)
		return
	}

	prob, err := mc.ngramService.CondProb(c.Param("id"), request.Token, request.Context)
	if err != nil {
		mc.fail(c, "Failed to compute conditional probability", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":   request.Token,
		"context": request.Context,
		"prob":    prob,
	})
}

func (mc *ModelController) Score(c *gin.Context) {
	var request ScoreRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		mc.invalidPayload(c, err)
		return
	}

	score, err := mc.ngramService.ScoreSentence(c.Param("id"), request.Sentence)
	if err != nil {
		mc.fail(c, "Failed to score sentence", err)
		return
	}
	c.JSON(http.StatusOK, score)
}

func (mc *ModelController) Perplexity(c *gin.Context) {
	var request PerplexityRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		mc.invalidPayload(c, err)
		return
	}

	var (
		result *service.PerplexityResult
		err    error
	)
	if request.Text != "" {
		result, err = mc.ngramService.PerplexityText(c.Request.Context(), c.Param("id"), request.Text, request.Format)
	} else {
		result, err = mc.ngramService.Perplexity(c.Param("id"), request.Sentences)
	}
	if err != nil {
		mc.fail(c, "Failed to compute perplexity", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (mc *ModelController) Generate(c *gin.Context) {
	request := GenerateRequest{Count: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			mc.invalidPayload(c, err)
			return
		}
	}
	if request.Count > maxGenerateCount {
		request.Count = maxGenerateCount
	}

	sents, err := mc.ngramService.Generate(c.Param("id"), request.Count)
	if err != nil {
		mc.fail(c, "Failed to generate sentences", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sentences": sents})
}

func (mc *ModelController) Distribution(c *gin.Context) {
	var request DistributionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		mc.invalidPayload(c, err)
		return
	}

	dist, err := mc.ngramService.Distribution(c.Param("id"), request.Context)
	if err != nil {
		mc.fail(c, "Failed to get distribution", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": request.Context, "outcomes": dist})
}

func (mc *ModelController) invalidPayload(c *gin.Context, err error) {
	mc.logger.Error("Invalid request payload", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request payload",
		"details": err.Error(),
	})
}

func (mc *ModelController) fail(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		mc.logger.Error(message, zap.String("path", c.Request.URL.Path), zap.Error(err))
	} else {
		mc.logger.Warn(message, zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrModelNotFound),
		errors.Is(err, ngram.ErrUnknownContext):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNoCorpus),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, ngram.ErrInvalidOrder),
		errors.Is(err, ngram.ErrContextLength),
		errors.Is(err, ngram.ErrReservedToken),
		errors.Is(err, ngram.ErrEmptyCorpus),
		errors.Is(err, ngram.ErrHeldOutTooSmall),
		errors.Is(err, ngram.ErrInvalidParameter),
		errors.Is(err, ngram.ErrUnknownMethod),
		errors.Is(err, corpus.ErrNoTokenizer):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
