package routes

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/triagedesk/backend/internal/controllers"
	"github.com/triagedesk/backend/internal/embedding"
	"github.com/triagedesk/backend/internal/llm"
	"github.com/triagedesk/backend/internal/middleware"
	"github.com/triagedesk/backend/internal/services"
	"github.com/triagedesk/backend/internal/store"
)

// SetupRoutes wires the stores, services, and controllers and registers all
// routes. The embedding cache warm-up runs in the background so startup is
// not gated on embedding the whole corpus.
func SetupRoutes(r *gin.Engine, db *gorm.DB) error {
	gormStore := store.NewGormStore(db)

	metricsService := services.NewMetricsService(gormStore)

	var embedder embedding.Embedder
	if os.Getenv("EMBEDDING_PROVIDER") == "ollama" {
		embedder = embedding.NewOllamaEmbedder()
	} else {
		embedder = embedding.NewHashingEmbedder()
	}
	cache := embedding.NewCache(embedder)

	similarityService := services.NewSimilarityService(gormStore, cache, metricsService)

	taggingService, err := services.NewAutoTaggingService(context.Background(), cache, metricsService)
	if err != nil {
		return err
	}

	provider, err := llm.NewProviderFromEnv()
	if err != nil {
		return err
	}
	gateway := llm.NewGateway(provider)

	githubService := services.NewGitHubService(services.NewGitHubClient(os.Getenv("GITHUB_TOKEN")))

	rootCauseService := services.NewRootCauseService(
		gormStore, gormStore, gormStore,
		similarityService, githubService, gateway, metricsService,
	)
	automationService := services.NewAutomationService(rootCauseService, gormStore)
	evaluationService := services.NewEvaluationService(
		gormStore, gormStore, metricsService,
		similarityService, taggingService, rootCauseService,
	)

	go similarityService.PrecomputeExistingTickets(context.Background())

	aiController := controllers.NewAIController(
		similarityService, taggingService, rootCauseService, automationService, metricsService,
	)
	evaluationController := controllers.NewEvaluationController(evaluationService)

	r.Use(middleware.RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		ai := api.Group("/ai")
		{
			ai.POST("/similar", aiController.FindSimilarTickets)
			ai.POST("/auto-tag", aiController.AutoTag)

			metrics := ai.Group("/metrics")
			{
				metrics.GET("/similarity", aiController.GetSimilarityMetrics)
				metrics.GET("/rootcause", aiController.GetRootCauseMetrics)
				metrics.GET("/performance", aiController.GetPerformanceMetrics)
			}

			evaluation := ai.Group("/evaluation")
			{
				evaluation.POST("/similarity", evaluationController.RunSimilarityEvaluation)
				evaluation.POST("/tagging", evaluationController.RunTaggingEvaluation)
				evaluation.POST("/benchmark", evaluationController.RunPerformanceBenchmark)
				evaluation.GET("/:id", evaluationController.GetEvaluation)
			}
		}

		tickets := api.Group("/tickets")
		{
			tickets.POST("/:id/rootcause", aiController.AnalyzeRootCause)
			tickets.POST("/:id/rootcause/comment", aiController.PostRootCauseComment)
		}
	}

	return nil
}
