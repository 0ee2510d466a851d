package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/triagedesk/backend/internal/models"
	"gorm.io/gorm"
)

// GormStore implements all engine store interfaces over a single gorm handle.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetTicket(ctx context.Context, id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.db.WithContext(ctx).Preload("Team").First(&ticket, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ticket %d: %w", id, ErrTicketNotFound)
		}
		return nil, fmt.Errorf("failed to load ticket %d: %w", id, err)
	}
	return &ticket, nil
}

func (s *GormStore) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := s.db.WithContext(ctx).Preload("Team").Order("id").Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

func (s *GormStore) ListTicketIDs(ctx context.Context, limit int) ([]uint, error) {
	var ids []uint
	q := s.db.WithContext(ctx).Model(&models.Ticket{}).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list ticket ids: %w", err)
	}
	return ids, nil
}

func (s *GormStore) RecentComments(ctx context.Context, ticketID uint, limit int) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at DESC").
		Limit(limit).
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load comments for ticket %d: %w", ticketID, err)
	}
	return comments, nil
}

func (s *GormStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (s *GormStore) FailureForTicket(ctx context.Context, ticketID uint) (*models.CIFailure, error) {
	var failure models.CIFailure
	err := s.db.WithContext(ctx).
		Preload("Repository").
		Where("ticket_id = ?", ticketID).
		Order("created_at DESC").
		First(&failure).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ci failure for ticket %d: %w", ticketID, err)
	}
	return &failure, nil
}

func (s *GormStore) Insert(ctx context.Context, metric *models.AIMetric) error {
	if err := s.db.WithContext(ctx).Create(metric).Error; err != nil {
		return fmt.Errorf("failed to insert metric event: %w", err)
	}
	return nil
}

func (s *GormStore) CountEvents(ctx context.Context, eventType, feature string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.AIMetric{}).
		Where("event_type = ? AND ai_feature = ? AND created_at >= ?", eventType, feature, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count %s events: %w", eventType, err)
	}
	return count, nil
}

func (s *GormStore) Ratings(ctx context.Context, feature string, since time.Time) ([]int, error) {
	var ratings []int
	err := s.db.WithContext(ctx).Model(&models.AIMetric{}).
		Where("ai_feature = ? AND user_rating IS NOT NULL AND created_at >= ?", feature, since).
		Pluck("user_rating", &ratings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}
	return ratings, nil
}

func (s *GormStore) ResponseTimes(ctx context.Context, since time.Time) ([]int, error) {
	var times []int
	err := s.db.WithContext(ctx).Model(&models.AIMetric{}).
		Where("response_time_ms IS NOT NULL AND created_at >= ?", since).
		Pluck("response_time_ms", &times).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load response times: %w", err)
	}
	return times, nil
}

func (s *GormStore) SaveResult(ctx context.Context, record *models.EvaluationRecord) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to save evaluation result: %w", err)
	}
	return nil
}

func (s *GormStore) GetResult(ctx context.Context, id string) (*models.EvaluationRecord, error) {
	var record models.EvaluationRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to load evaluation result %s: %w", id, err)
	}
	return &record, nil
}
