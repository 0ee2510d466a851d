package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagedesk/backend/internal/embedding"
	"github.com/triagedesk/backend/internal/models"
)

func similarityFixture() (*fakeTicketStore, *fakeMetricsStore, *SimilarityService) {
	store := newFakeTicketStore(
		&models.Ticket{ID: 1, Title: "Login fails", Description: "Users cannot sign in with SSO", Status: models.StatusOpen},
		&models.Ticket{ID: 2, Title: "Database timeout", Description: "Queries to the orders database time out", Status: models.StatusResolved, Team: &models.Team{Name: "Platform"}},
		&models.Ticket{ID: 3, Title: "Slow dashboard", Description: "Dashboard rendering takes over ten seconds", Status: models.StatusOpen},
	)
	metricsStore := &fakeMetricsStore{}
	service := NewSimilarityService(store, newTestCache(), NewMetricsService(metricsStore))
	return store, metricsStore, service
}

func TestFindSimilarRanksExactMatchFirst(t *testing.T) {
	store, metricsStore, service := similarityFixture()

	query := store.tickets[2].Text()
	results := service.FindSimilar(context.Background(), query, nil, 5, nil)

	require.Len(t, results, 3)
	assert.Equal(t, uint(2), results[0].ID)
	assert.InDelta(t, 1.0, results[0].SimilarityScore, 0.001)
	assert.Equal(t, "Platform", results[0].TeamName)
	assert.Equal(t, string(models.StatusResolved), results[0].Status)

	require.True(t, metricsStore.hasEvent("similarity_shown"))
}

func TestFindSimilarExcludesCurrentTicket(t *testing.T) {
	store, _, service := similarityFixture()

	exclude := uint(2)
	results := service.FindSimilar(context.Background(), store.tickets[2].Text(), &exclude, 5, nil)

	require.Len(t, results, 2)
	for _, result := range results {
		assert.NotEqual(t, exclude, result.ID)
	}
}

func TestFindSimilarRespectsLimit(t *testing.T) {
	_, _, service := similarityFixture()

	results := service.FindSimilar(context.Background(), "database timeout", nil, 1, nil)
	assert.Len(t, results, 1)
}

func TestFindSimilarTieKeepsCorpusOrder(t *testing.T) {
	text := "Payment webhook retries exhausted"
	store := newFakeTicketStore(
		&models.Ticket{ID: 7, Title: text, Description: "", Status: models.StatusOpen},
		&models.Ticket{ID: 8, Title: text, Description: "", Status: models.StatusOpen},
	)
	service := NewSimilarityService(store, newTestCache(), NewMetricsService(&fakeMetricsStore{}))

	results := service.FindSimilar(context.Background(), store.tickets[7].Text(), nil, 5, nil)

	require.Len(t, results, 2)
	assert.Equal(t, uint(7), results[0].ID)
	assert.Equal(t, uint(8), results[1].ID)
}

func TestFindSimilarReturnsEmptyOnStoreFailure(t *testing.T) {
	store, _, service := similarityFixture()
	store.err = errStoreDown

	results := service.FindSimilar(context.Background(), "anything", nil, 5, nil)

	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFindSimilarReturnsEmptyOnEmbedFailure(t *testing.T) {
	store := newFakeTicketStore(
		&models.Ticket{ID: 1, Title: "Login fails", Description: "SSO errors", Status: models.StatusOpen},
	)
	embedder := &budgetEmbedder{inner: embedding.NewHashingEmbedder(), budget: 0}
	service := NewSimilarityService(store, embedding.NewCache(embedder), NewMetricsService(&fakeMetricsStore{}))

	results := service.FindSimilar(context.Background(), "login broken", nil, 5, nil)

	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFindSimilarTruncatesLongDescriptions(t *testing.T) {
	longDescription := strings.Repeat("connection pool exhausted ", 10) // 260 chars
	store := newFakeTicketStore(
		&models.Ticket{ID: 4, Title: "Database outage", Description: longDescription, Status: models.StatusOpen},
	)
	service := NewSimilarityService(store, newTestCache(), NewMetricsService(&fakeMetricsStore{}))

	results := service.FindSimilar(context.Background(), "database outage", nil, 5, nil)

	require.Len(t, results, 1)
	assert.Len(t, results[0].Description, 203)
	assert.True(t, strings.HasSuffix(results[0].Description, "..."))
}

func TestFindSimilarTruncationKeepsMultiByteCharacters(t *testing.T) {
	longDescription := strings.Repeat("überlastete Warteschlange blockiert Anfragen ", 6)
	store := newFakeTicketStore(
		&models.Ticket{ID: 4, Title: "Warteschlange blockiert", Description: longDescription, Status: models.StatusOpen},
	)
	service := NewSimilarityService(store, newTestCache(), NewMetricsService(&fakeMetricsStore{}))

	results := service.FindSimilar(context.Background(), "warteschlange blockiert", nil, 5, nil)

	require.Len(t, results, 1)
	assert.True(t, utf8.ValidString(results[0].Description))
	assert.Equal(t, 203, utf8.RuneCountInString(results[0].Description))
	assert.True(t, strings.HasSuffix(results[0].Description, "..."))
}

func TestPrecomputeExistingTicketsWarmsCache(t *testing.T) {
	store, _, _ := similarityFixture()
	cache := newTestCache()
	service := NewSimilarityService(store, cache, NewMetricsService(&fakeMetricsStore{}))

	service.PrecomputeExistingTickets(context.Background())

	assert.Equal(t, 3, cache.Len())
}
