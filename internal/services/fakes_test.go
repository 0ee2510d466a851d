package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/triagedesk/backend/internal/embedding"
	"github.com/triagedesk/backend/internal/llm"
	"github.com/triagedesk/backend/internal/models"
	"github.com/triagedesk/backend/internal/store"
)

var errStoreDown = errors.New("store unavailable")

type fakeTicketStore struct {
	tickets map[uint]*models.Ticket
	order   []uint
	err     error
}

func newFakeTicketStore(tickets ...*models.Ticket) *fakeTicketStore {
	s := &fakeTicketStore{tickets: make(map[uint]*models.Ticket)}
	for _, t := range tickets {
		s.tickets[t.ID] = t
		s.order = append(s.order, t.ID)
	}
	return s
}

func (s *fakeTicketStore) GetTicket(_ context.Context, id uint) (*models.Ticket, error) {
	if s.err != nil {
		return nil, s.err
	}
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: %w", id, store.ErrTicketNotFound)
	}
	return ticket, nil
}

func (s *fakeTicketStore) ListTickets(_ context.Context) ([]models.Ticket, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Ticket, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.tickets[id])
	}
	return out, nil
}

func (s *fakeTicketStore) ListTicketIDs(_ context.Context, limit int) ([]uint, error) {
	if s.err != nil {
		return nil, s.err
	}
	ids := append([]uint(nil), s.order...)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type fakeCommentStore struct {
	comments map[uint][]models.Comment
	created  []*models.Comment
	err      error
}

func (s *fakeCommentStore) RecentComments(_ context.Context, ticketID uint, limit int) ([]models.Comment, error) {
	if s.err != nil {
		return nil, s.err
	}
	comments := s.comments[ticketID]
	if limit > 0 && len(comments) > limit {
		comments = comments[:limit]
	}
	return comments, nil
}

func (s *fakeCommentStore) CreateComment(_ context.Context, comment *models.Comment) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, comment)
	return nil
}

type fakeFailureStore struct {
	failure *models.CIFailure
	err     error
}

func (s *fakeFailureStore) FailureForTicket(_ context.Context, _ uint) (*models.CIFailure, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.failure, nil
}

// fakeMetricsStore records inserted events and serves canned aggregates.
// Insert must be safe for concurrent use: the benchmark harness logs events
// from many goroutines at once.
type fakeMetricsStore struct {
	mu        sync.Mutex
	inserted  []*models.AIMetric
	counts    map[string]int64
	ratings   []int
	times     []int
	insertErr error
}

func (s *fakeMetricsStore) Insert(_ context.Context, metric *models.AIMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, metric)
	return nil
}

func (s *fakeMetricsStore) CountEvents(_ context.Context, eventType, _ string, _ time.Time) (int64, error) {
	return s.counts[eventType], nil
}

func (s *fakeMetricsStore) Ratings(_ context.Context, _ string, _ time.Time) ([]int, error) {
	return s.ratings, nil
}

func (s *fakeMetricsStore) ResponseTimes(_ context.Context, _ time.Time) ([]int, error) {
	return s.times, nil
}

func (s *fakeMetricsStore) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.inserted))
	for _, metric := range s.inserted {
		types = append(types, metric.EventType)
	}
	return types
}

func (s *fakeMetricsStore) hasEvent(eventType string) bool {
	for _, recorded := range s.eventTypes() {
		if recorded == eventType {
			return true
		}
	}
	return false
}

type fakeEvaluationStore struct {
	records map[string]*models.EvaluationRecord
}

func newFakeEvaluationStore() *fakeEvaluationStore {
	return &fakeEvaluationStore{records: make(map[string]*models.EvaluationRecord)}
}

func (s *fakeEvaluationStore) SaveResult(_ context.Context, record *models.EvaluationRecord) error {
	s.records[record.ID] = record
	return nil
}

func (s *fakeEvaluationStore) GetResult(_ context.Context, id string) (*models.EvaluationRecord, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("evaluation %s not found", id)
	}
	return record, nil
}

// staticProvider returns one fixed response for every generation request.
type staticProvider struct {
	response string
	err      error
}

func (p *staticProvider) Name() string { return "static" }

func (p *staticProvider) Generate(_ context.Context, _ []llm.Message, _ int, _ float64) (string, error) {
	return p.response, p.err
}

type fakeCommitAPI struct {
	commits  []APICommit
	details  map[string]*APICommitDetail
	repo     *APIRepository
	langs    map[string]int
	tree     []APITreeEntry
	contents map[string]string

	listErr error
	repoErr error
	treeErr error
}

func (a *fakeCommitAPI) ListCommits(_ context.Context, _, _ string, _ int) ([]APICommit, error) {
	if a.listErr != nil {
		return nil, a.listErr
	}
	return a.commits, nil
}

func (a *fakeCommitAPI) GetCommit(_ context.Context, _, _, sha string) (*APICommitDetail, error) {
	detail, ok := a.details[sha]
	if !ok {
		return nil, fmt.Errorf("commit %s not found", sha)
	}
	return detail, nil
}

func (a *fakeCommitAPI) GetRepository(_ context.Context, _, _ string) (*APIRepository, error) {
	if a.repoErr != nil {
		return nil, a.repoErr
	}
	return a.repo, nil
}

func (a *fakeCommitAPI) ListLanguages(_ context.Context, _, _ string) (map[string]int, error) {
	return a.langs, nil
}

func (a *fakeCommitAPI) GetTree(_ context.Context, _, _, _ string) ([]APITreeEntry, error) {
	if a.treeErr != nil {
		return nil, a.treeErr
	}
	return a.tree, nil
}

func (a *fakeCommitAPI) GetFileContent(_ context.Context, _, _, path string) (string, error) {
	content, ok := a.contents[path]
	if !ok {
		return "", fmt.Errorf("no content for %s", path)
	}
	return content, nil
}

func newTestCache() *embedding.Cache {
	return embedding.NewCache(embedding.NewHashingEmbedder())
}

func mustEmbed(t interface{ Fatalf(string, ...any) }, cache *embedding.Cache, text string) []float32 {
	vec, err := cache.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("embed %q: %v", text, err)
	}
	return vec
}
