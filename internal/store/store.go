package store

import (
	"context"
	"errors"
	"time"

	"github.com/triagedesk/backend/internal/models"
)

// ErrTicketNotFound reports that no ticket exists for the requested id.
// Callers use it to tell a missing record apart from a storage failure.
var ErrTicketNotFound = errors.New("ticket not found")

// TicketStore is the read surface the engine needs from the ticket system.
type TicketStore interface {
	GetTicket(ctx context.Context, id uint) (*models.Ticket, error)
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	ListTicketIDs(ctx context.Context, limit int) ([]uint, error)
}

type CommentStore interface {
	RecentComments(ctx context.Context, ticketID uint, limit int) ([]models.Comment, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
}

// CIFailureStore resolves the CI failure (if any) that spawned a ticket.
type CIFailureStore interface {
	FailureForTicket(ctx context.Context, ticketID uint) (*models.CIFailure, error)
}

// MetricsStore is the append-only metrics sink plus the aggregate reads the
// summary endpoints need.
type MetricsStore interface {
	Insert(ctx context.Context, metric *models.AIMetric) error
	CountEvents(ctx context.Context, eventType, feature string, since time.Time) (int64, error)
	Ratings(ctx context.Context, feature string, since time.Time) ([]int, error)
	ResponseTimes(ctx context.Context, since time.Time) ([]int, error)
}

// EvaluationStore persists write-once evaluation runs.
type EvaluationStore interface {
	SaveResult(ctx context.Context, record *models.EvaluationRecord) error
	GetResult(ctx context.Context, id string) (*models.EvaluationRecord, error)
}
