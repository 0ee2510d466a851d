package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/triagedesk/backend/internal/logger"
	"github.com/triagedesk/backend/internal/models"
	"github.com/triagedesk/backend/internal/store"
)

// MetricsService records AI feature events and serves aggregate summaries.
// Recording is best-effort: a sink failure is logged and swallowed so a
// metrics outage never takes an AI feature down with it.
type MetricsService struct {
	store store.MetricsStore
}

func NewMetricsService(metricsStore store.MetricsStore) *MetricsService {
	return &MetricsService{store: metricsStore}
}

// Event carries everything one metric row needs.
type Event struct {
	EventType      string
	AIFeature      string
	TicketID       *uint
	UserID         *uint
	Metadata       models.JSONB
	UserRating     *int
	ResponseTimeMs *int
}

func (s *MetricsService) LogEvent(ctx context.Context, event Event) {
	metric := &models.AIMetric{
		EventType:      event.EventType,
		AIFeature:      event.AIFeature,
		TicketID:       event.TicketID,
		UserID:         event.UserID,
		Metadata:       event.Metadata,
		UserRating:     event.UserRating,
		ResponseTimeMs: event.ResponseTimeMs,
	}
	if err := s.store.Insert(ctx, metric); err != nil {
		logger.Warn("Failed to record metric event", map[string]interface{}{
			"event_type": event.EventType,
			"ai_feature": event.AIFeature,
			"error":      err.Error(),
		})
	}
}

// SimilarityMetrics summarizes suggestion impressions and clicks.
type SimilarityMetrics struct {
	TotalSuggestionsShown   int64   `json:"total_suggestions_shown"`
	TotalSuggestionsClicked int64   `json:"total_suggestions_clicked"`
	ClickThroughRate        float64 `json:"click_through_rate"`
	PeriodDays              int     `json:"period_days"`
}

func (s *MetricsService) GetSimilarityMetrics(ctx context.Context, days int) (*SimilarityMetrics, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	shown, err := s.store.CountEvents(ctx, "similarity_shown", "similarity", since)
	if err != nil {
		return nil, err
	}
	clicked, err := s.store.CountEvents(ctx, "similarity_clicked", "similarity", since)
	if err != nil {
		return nil, err
	}

	clickRate := 0.0
	if shown > 0 {
		clickRate = float64(clicked) / float64(shown) * 100
	}

	return &SimilarityMetrics{
		TotalSuggestionsShown:   shown,
		TotalSuggestionsClicked: clicked,
		ClickThroughRate:        round2(clickRate),
		PeriodDays:              days,
	}, nil
}

// RootCauseMetrics summarizes analysis volume and user ratings.
type RootCauseMetrics struct {
	TotalAnalysesRequested   int64   `json:"total_analyses_requested"`
	TotalRatingsGiven        int     `json:"total_ratings_given"`
	AverageRating            float64 `json:"average_rating"`
	PositiveRatingPercentage float64 `json:"positive_rating_percentage"`
	PeriodDays               int     `json:"period_days"`
}

func (s *MetricsService) GetRootCauseMetrics(ctx context.Context, days int) (*RootCauseMetrics, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	total, err := s.store.CountEvents(ctx, "rootcause_requested", "rootcause", since)
	if err != nil {
		return nil, err
	}
	ratings, err := s.store.Ratings(ctx, "rootcause", since)
	if err != nil {
		return nil, err
	}

	var avgRating, positiveRate float64
	if len(ratings) > 0 {
		sum, positive := 0, 0
		for _, r := range ratings {
			sum += r
			if r >= 3 {
				positive++
			}
		}
		avgRating = float64(sum) / float64(len(ratings))
		positiveRate = float64(positive) / float64(len(ratings)) * 100
	}

	return &RootCauseMetrics{
		TotalAnalysesRequested:   total,
		TotalRatingsGiven:        len(ratings),
		AverageRating:            round2(avgRating),
		PositiveRatingPercentage: round2(positiveRate),
		PeriodDays:               days,
	}, nil
}

// PerformanceMetrics summarizes response times across all AI features.
type PerformanceMetrics struct {
	AverageResponseTimeMs float64 `json:"average_response_time_ms"`
	P95ResponseTimeMs     int     `json:"p95_response_time_ms"`
	TotalRequests         int     `json:"total_requests"`
	PeriodDays            int     `json:"period_days"`
}

func (s *MetricsService) GetPerformanceMetrics(ctx context.Context, days int) (*PerformanceMetrics, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	times, err := s.store.ResponseTimes(ctx, since)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return &PerformanceMetrics{PeriodDays: days}, nil
	}

	sort.Ints(times)
	sum := 0
	for _, t := range times {
		sum += t
	}
	p95Index := int(float64(len(times)) * 0.95)
	if p95Index >= len(times) {
		p95Index = len(times) - 1
	}

	return &PerformanceMetrics{
		AverageResponseTimeMs: round2(float64(sum) / float64(len(times))),
		P95ResponseTimeMs:     times[p95Index],
		TotalRequests:         len(times),
		PeriodDays:            days,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
