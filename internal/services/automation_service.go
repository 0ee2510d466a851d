package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/triagedesk/backend/internal/logger"
	"github.com/triagedesk/backend/internal/models"
	"github.com/triagedesk/backend/internal/store"
)

// AutomationService turns root-cause findings into ticket comments posted
// under the AI assistant author.
type AutomationService struct {
	rootcause *RootCauseService
	comments  store.CommentStore
}

func NewAutomationService(rootcause *RootCauseService, comments store.CommentStore) *AutomationService {
	return &AutomationService{rootcause: rootcause, comments: comments}
}

// PostRootCauseComment analyzes the ticket and posts the formatted finding
// as a comment. The comment has no author; the content identifies it as the
// AI assistant.
func (s *AutomationService) PostRootCauseComment(ctx context.Context, ticketID uint) (*models.Comment, error) {
	logger.WithTicket(ticketID, "ai_automation").Info("Starting automated root cause analysis")

	finding, err := s.rootcause.AnalyzeTicket(ctx, ticketID, nil, true)
	if err != nil {
		return nil, fmt.Errorf("root cause analysis failed: %w", err)
	}

	comment := &models.Comment{
		TicketID: ticketID,
		Content:  formatAnalysisComment(finding),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	logger.WithTicket(ticketID, "ai_automation").WithField("comment_id", comment.ID).
		Info("Posted AI analysis comment")
	return comment, nil
}

func formatAnalysisComment(finding *RootCauseFinding) string {
	confidenceText := "Low"
	switch {
	case finding.ConfidenceScore >= 0.8:
		confidenceText = "High"
	case finding.ConfidenceScore >= 0.5:
		confidenceText = "Medium"
	}

	var b strings.Builder
	b.WriteString("**AI Root Cause Analysis**\n\n")
	fmt.Fprintf(&b, "**Confidence Level:** %s (%.0f%%)\n\n", confidenceText, finding.ConfidenceScore*100)
	b.WriteString("**Root Cause:**\n")
	b.WriteString(finding.RootCause)
	b.WriteString("\n\n**Recommended Actions:**")
	for i, suggestion := range finding.Suggestions {
		fmt.Fprintf(&b, "\n%d. %s", i+1, suggestion)
	}

	if len(finding.SimilarResolvedTickets) > 0 {
		b.WriteString("\n\n**Similar Resolved Issues:**")
		for _, similar := range firstN(finding.SimilarResolvedTickets, 3) {
			fmt.Fprintf(&b, "\n- #%d - %s", similar.ID, similar.Title)
		}
	}

	methodText := "Pattern-based"
	if finding.LLMUsed {
		methodText = "LLM-powered"
	}
	fmt.Fprintf(&b, "\n\n---\n*Analysis method: %s | Generated at %s*",
		methodText, time.Now().UTC().Format("2006-01-02 15:04 UTC"))

	return b.String()
}
