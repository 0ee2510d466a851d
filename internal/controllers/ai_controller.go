package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/triagedesk/backend/internal/services"
	"github.com/triagedesk/backend/internal/store"
)

// AIController serves the AI feature endpoints: similarity search,
// auto-tagging, root cause analysis, and the metric summaries.
type AIController struct {
	similarity *services.SimilarityService
	tagging    *services.AutoTaggingService
	rootcause  *services.RootCauseService
	automation *services.AutomationService
	metrics    *services.MetricsService
}

func NewAIController(
	similarity *services.SimilarityService,
	tagging *services.AutoTaggingService,
	rootcause *services.RootCauseService,
	automation *services.AutomationService,
	metrics *services.MetricsService,
) *AIController {
	return &AIController{
		similarity: similarity,
		tagging:    tagging,
		rootcause:  rootcause,
		automation: automation,
		metrics:    metrics,
	}
}

type similarRequest struct {
	TicketText      string `json:"ticket_text" binding:"required"`
	CurrentTicketID *uint  `json:"current_ticket_id"`
	Limit           int    `json:"limit"`
	UserID          *uint  `json:"user_id"`
}

func (ac *AIController) FindSimilarTickets(c *gin.Context) {
	var req similarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}

	suggestions := ac.similarity.FindSimilar(c.Request.Context(), req.TicketText, req.CurrentTicketID, req.Limit, req.UserID)
	c.JSON(http.StatusOK, gin.H{"similar_tickets": suggestions})
}

type autoTagRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	UserID      *uint  `json:"user_id"`
}

func (ac *AIController) AutoTag(c *gin.Context) {
	var req autoTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := ac.tagging.AutoTag(c.Request.Context(), req.Title, req.Description, req.UserID)
	c.JSON(http.StatusOK, result)
}

func (ac *AIController) AnalyzeRootCause(c *gin.Context) {
	ticketID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ticket ID"})
		return
	}

	useLLM := c.DefaultQuery("use_llm", "true") != "false"

	finding, err := ac.rootcause.AnalyzeTicket(c.Request.Context(), uint(ticketID), nil, useLLM)
	if err != nil {
		c.JSON(analysisErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, finding)
}

func (ac *AIController) PostRootCauseComment(c *gin.Context) {
	ticketID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ticket ID"})
		return
	}

	comment, err := ac.automation.PostRootCauseComment(c.Request.Context(), uint(ticketID))
	if err != nil {
		c.JSON(analysisErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// analysisErrorStatus maps a missing subject ticket to 404; everything else
// the pipeline surfaces is an infrastructure failure.
func analysisErrorStatus(err error) int {
	if errors.Is(err, store.ErrTicketNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (ac *AIController) periodDays(c *gin.Context) int {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		return 30
	}
	return days
}

func (ac *AIController) GetSimilarityMetrics(c *gin.Context) {
	summary, err := ac.metrics.GetSimilarityMetrics(c.Request.Context(), ac.periodDays(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (ac *AIController) GetRootCauseMetrics(c *gin.Context) {
	summary, err := ac.metrics.GetRootCauseMetrics(c.Request.Context(), ac.periodDays(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (ac *AIController) GetPerformanceMetrics(c *gin.Context) {
	summary, err := ac.metrics.GetPerformanceMetrics(c.Request.Context(), ac.periodDays(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
