package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/triagedesk/backend/internal/embedding"
	"github.com/triagedesk/backend/internal/llm"
	"github.com/triagedesk/backend/internal/models"
	"github.com/triagedesk/backend/internal/services"
	"github.com/triagedesk/backend/internal/store"
)

type stubTicketStore struct {
	tickets map[uint]*models.Ticket
	err     error
}

func (s *stubTicketStore) GetTicket(_ context.Context, id uint) (*models.Ticket, error) {
	if s.err != nil {
		return nil, s.err
	}
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: %w", id, store.ErrTicketNotFound)
	}
	return ticket, nil
}

func (s *stubTicketStore) ListTickets(_ context.Context) ([]models.Ticket, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Ticket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		out = append(out, *ticket)
	}
	return out, nil
}

func (s *stubTicketStore) ListTicketIDs(_ context.Context, _ int) ([]uint, error) {
	if s.err != nil {
		return nil, s.err
	}
	ids := make([]uint, 0, len(s.tickets))
	for id := range s.tickets {
		ids = append(ids, id)
	}
	return ids, nil
}

type stubCommentStore struct{}

func (s *stubCommentStore) RecentComments(_ context.Context, _ uint, _ int) ([]models.Comment, error) {
	return nil, nil
}

func (s *stubCommentStore) CreateComment(_ context.Context, _ *models.Comment) error {
	return nil
}

type stubFailureStore struct{}

func (s *stubFailureStore) FailureForTicket(_ context.Context, _ uint) (*models.CIFailure, error) {
	return nil, nil
}

type stubMetricsStore struct{}

func (s *stubMetricsStore) Insert(_ context.Context, _ *models.AIMetric) error { return nil }
func (s *stubMetricsStore) CountEvents(_ context.Context, _, _ string, _ time.Time) (int64, error) {
	return 0, nil
}
func (s *stubMetricsStore) Ratings(_ context.Context, _ string, _ time.Time) ([]int, error) {
	return nil, nil
}
func (s *stubMetricsStore) ResponseTimes(_ context.Context, _ time.Time) ([]int, error) {
	return nil, nil
}

func testRouter(t *testing.T) (*gin.Engine, *stubTicketStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tickets := &stubTicketStore{tickets: map[uint]*models.Ticket{
		1: {ID: 1, Title: "Database timeout", Description: "orders database times out", Status: models.StatusOpen},
		2: {ID: 2, Title: "Database timeouts under load", Description: "pool exhausted", Status: models.StatusResolved},
	}}
	metrics := services.NewMetricsService(&stubMetricsStore{})
	cache := embedding.NewCache(embedding.NewHashingEmbedder())
	similarity := services.NewSimilarityService(tickets, cache, metrics)
	tagging, err := services.NewAutoTaggingService(context.Background(), cache, metrics)
	if err != nil {
		t.Fatalf("NewAutoTaggingService failed: %v", err)
	}
	rootcause := services.NewRootCauseService(
		tickets, &stubCommentStore{}, &stubFailureStore{},
		similarity, services.NewGitHubService(services.NewGitHubClient("")),
		llm.NewGateway(llm.NewMockProvider()), metrics,
	)
	automation := services.NewAutomationService(rootcause, &stubCommentStore{})
	controller := NewAIController(similarity, tagging, rootcause, automation, metrics)

	r := gin.New()
	r.POST("/similar", controller.FindSimilarTickets)
	r.POST("/auto-tag", controller.AutoTag)
	r.POST("/tickets/:id/rootcause", controller.AnalyzeRootCause)
	r.GET("/metrics/similarity", controller.GetSimilarityMetrics)
	return r, tickets
}

func performJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFindSimilarTicketsEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := performJSON(r, http.MethodPost, "/similar", map[string]any{
		"ticket_text": "orders database times out",
		"limit":       1,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var response struct {
		SimilarTickets []services.SimilarTicket `json:"similar_tickets"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if len(response.SimilarTickets) != 1 {
		t.Errorf("Expected 1 suggestion, got %d", len(response.SimilarTickets))
	}
}

func TestFindSimilarTicketsRequiresText(t *testing.T) {
	r, _ := testRouter(t)

	w := performJSON(r, http.MethodPost, "/similar", map[string]any{"limit": 3})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing ticket_text, got %d", w.Code)
	}
}

func TestAutoTagEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := performJSON(r, http.MethodPost, "/auto-tag", map[string]any{
		"title":       "Production outage",
		"description": "database connections failing",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result services.TaggingResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if result.SuggestedPriority == "" {
		t.Error("Expected a suggested priority")
	}
}

func TestAnalyzeRootCauseEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := performJSON(r, http.MethodPost, "/tickets/1/rootcause?use_llm=false", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var finding services.RootCauseFinding
	if err := json.Unmarshal(w.Body.Bytes(), &finding); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if finding.AnalysisMethod != "pattern_matching" {
		t.Errorf("Expected pattern_matching without LLM, got %s", finding.AnalysisMethod)
	}

	if w := performJSON(r, http.MethodPost, "/tickets/99/rootcause", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown ticket, got %d", w.Code)
	}
	if w := performJSON(r, http.MethodPost, "/tickets/abc/rootcause", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed id, got %d", w.Code)
	}
}

func TestAnalyzeRootCauseEndpointStoreOutage(t *testing.T) {
	r, tickets := testRouter(t)
	tickets.err = errors.New("connection refused")

	// A store outage is not a missing ticket; it must not masquerade as 404.
	w := performJSON(r, http.MethodPost, "/tickets/1/rootcause?use_llm=false", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 for a store outage, got %d", w.Code)
	}
}

func TestGetSimilarityMetricsEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := performJSON(r, http.MethodGet, "/metrics/similarity?days=7", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var summary services.SimilarityMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if summary.PeriodDays != 7 {
		t.Errorf("Expected period 7, got %d", summary.PeriodDays)
	}
}
