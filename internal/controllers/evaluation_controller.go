package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/triagedesk/backend/internal/services"
)

// EvaluationController exposes the offline evaluation harness.
type EvaluationController struct {
	evaluation *services.EvaluationService
}

func NewEvaluationController(evaluation *services.EvaluationService) *EvaluationController {
	return &EvaluationController{evaluation: evaluation}
}

type similarityEvaluationRequest struct {
	TestTickets []uint          `json:"test_tickets" binding:"required"`
	GroundTruth map[uint][]uint `json:"ground_truth_similar" binding:"required"`
	TopK        int             `json:"top_k"`
}

func (ec *EvaluationController) RunSimilarityEvaluation(c *gin.Context) {
	var req similarityEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 3
	}

	record, err := ec.evaluation.EvaluateSimilarityAccuracy(c.Request.Context(), req.TestTickets, req.GroundTruth, req.TopK)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

type taggingEvaluationRequest struct {
	TestTickets           []uint            `json:"test_tickets" binding:"required"`
	GroundTruthTags       map[uint][]string `json:"ground_truth_tags" binding:"required"`
	GroundTruthPriorities map[uint]string   `json:"ground_truth_priorities"`
}

func (ec *EvaluationController) RunTaggingEvaluation(c *gin.Context) {
	var req taggingEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := ec.evaluation.EvaluateTaggingAccuracy(c.Request.Context(), req.TestTickets, req.GroundTruthTags, req.GroundTruthPriorities)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

type benchmarkRequest struct {
	ConcurrentUsers []int  `json:"concurrent_users"`
	RequestsPerUser int    `json:"requests_per_user"`
	TestTicketIDs   []uint `json:"test_ticket_ids"`
}

func (ec *EvaluationController) RunPerformanceBenchmark(c *gin.Context) {
	var req benchmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := ec.evaluation.RunPerformanceBenchmark(c.Request.Context(), req.ConcurrentUsers, req.RequestsPerUser, req.TestTicketIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (ec *EvaluationController) GetEvaluation(c *gin.Context) {
	record, err := ec.evaluation.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}
