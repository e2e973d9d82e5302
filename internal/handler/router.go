package handler

import (
	"net/http"
	"runtime/debug"

	"ngram-lm/internal/controller"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRouter(modelController *controller.ModelController, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(CustomRecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/models", modelController.Train)
		v1.GET("/models", modelController.List)
		v1.GET("/models/:id", modelController.Get)
		v1.DELETE("/models/:id", modelController.Delete)
		v1.POST("/models/:id/condProb", modelController.CondProb)
		v1.POST("/models/:id/score", modelController.Score)
		v1.POST("/models/:id/perplexity", modelController.Perplexity)
		v1.POST("/models/:id/generate", modelController.Generate)
		v1.POST("/models/:id/distribution", modelController.Distribution)
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "healthy",
			})
		})
	}

	return router
}

func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
		)
		c.Next()
	}
}

func CustomRecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
