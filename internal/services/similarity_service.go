package services

import (
	"context"
	"sort"
	"time"

	"github.com/triagedesk/backend/internal/embedding"
	"github.com/triagedesk/backend/internal/logger"
	"github.com/triagedesk/backend/internal/models"
	"github.com/triagedesk/backend/internal/store"
)

// SimilarTicket is one ranked suggestion. Description carries at most 200
// characters of the original.
type SimilarTicket struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	TeamName        string    `json:"team_name,omitempty"`
	Status          string    `json:"status"`
	SimilarityScore float64   `json:"similarity_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// SimilarityService ranks the ticket corpus against a query by embedding
// cosine similarity.
type SimilarityService struct {
	tickets store.TicketStore
	cache   *embedding.Cache
	metrics *MetricsService
}

func NewSimilarityService(tickets store.TicketStore, cache *embedding.Cache, metrics *MetricsService) *SimilarityService {
	return &SimilarityService{
		tickets: tickets,
		cache:   cache,
		metrics: metrics,
	}
}

// PrecomputeExistingTickets warms the embedding cache with every ticket so
// the first similarity request does not pay the full corpus embedding cost.
func (s *SimilarityService) PrecomputeExistingTickets(ctx context.Context) {
	tickets, err := s.tickets.ListTickets(ctx)
	if err != nil {
		logger.Warn("Embedding warm-up could not list tickets", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	texts := make([]string, 0, len(tickets))
	for i := range tickets {
		texts = append(texts, tickets[i].Text())
	}

	warmed := s.cache.Warm(ctx, texts)
	logger.Info("Embedding cache warmed", map[string]interface{}{
		"tickets": len(tickets),
		"vectors": warmed,
	})
}

// FindSimilar returns up to limit tickets ranked by similarity to the query
// text, excluding excludeID when set. Any failure degrades to an empty list;
// similarity suggestions are an enhancement, never a blocker.
func (s *SimilarityService) FindSimilar(ctx context.Context, ticketText string, excludeID *uint, limit int, userID *uint) []SimilarTicket {
	start := time.Now()

	tickets, err := s.tickets.ListTickets(ctx)
	if err != nil {
		logger.Error("Similarity search could not list tickets", map[string]interface{}{
			"error": err.Error(),
		})
		return []SimilarTicket{}
	}

	queryVec, err := s.cache.Embed(ctx, ticketText)
	if err != nil {
		logger.Error("Similarity search could not embed query", map[string]interface{}{
			"error": err.Error(),
		})
		return []SimilarTicket{}
	}

	type scored struct {
		ticket *models.Ticket
		score  float64
	}
	scoredList := make([]scored, 0, len(tickets))
	for i := range tickets {
		ticket := &tickets[i]
		if excludeID != nil && ticket.ID == *excludeID {
			continue
		}
		vec, err := s.cache.Embed(ctx, ticket.Text())
		if err != nil {
			logger.Error("Similarity search could not embed a corpus ticket", map[string]interface{}{
				"ticket_id": ticket.ID,
				"error":     err.Error(),
			})
			return []SimilarTicket{}
		}
		scoredList = append(scoredList, scored{ticket: ticket, score: embedding.Cosine(queryVec, vec)})
	}

	// Stable keeps corpus order for score ties, so results never flap
	// between identical requests.
	sort.SliceStable(scoredList, func(i, j int) bool {
		return scoredList[i].score > scoredList[j].score
	})
	if limit > 0 && len(scoredList) > limit {
		scoredList = scoredList[:limit]
	}

	suggestions := make([]SimilarTicket, 0, len(scoredList))
	for _, item := range scoredList {
		description := ellipsize(item.ticket.Description, 200)
		teamName := ""
		if item.ticket.Team != nil {
			teamName = item.ticket.Team.Name
		}
		suggestions = append(suggestions, SimilarTicket{
			ID:              item.ticket.ID,
			Title:           item.ticket.Title,
			Description:     description,
			TeamName:        teamName,
			Status:          string(item.ticket.Status),
			SimilarityScore: round3(item.score),
			CreatedAt:       item.ticket.CreatedAt,
		})
	}

	suggestionIDs := make([]uint, 0, len(suggestions))
	scores := make([]float64, 0, len(suggestions))
	for _, sg := range suggestions {
		suggestionIDs = append(suggestionIDs, sg.ID)
		scores = append(scores, sg.SimilarityScore)
	}
	responseTime := int(time.Since(start).Milliseconds())
	s.metrics.LogEvent(ctx, Event{
		EventType: "similarity_shown",
		AIFeature: "similarity",
		TicketID:  excludeID,
		UserID:    userID,
		Metadata: models.JSONB{
			"suggestions":       suggestionIDs,
			"similarity_scores": scores,
			"query_length":      len(ticketText),
		},
		ResponseTimeMs: &responseTime,
	})

	return suggestions
}
