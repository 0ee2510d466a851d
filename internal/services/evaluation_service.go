package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/triagedesk/backend/internal/logger"
	"github.com/triagedesk/backend/internal/models"
	"github.com/triagedesk/backend/internal/store"
)

// EvaluationService measures the AI features offline: retrieval accuracy,
// classification accuracy, and throughput under concurrent load. Every run
// is persisted as a write-once EvaluationRecord.
type EvaluationService struct {
	tickets    store.TicketStore
	evals      store.EvaluationStore
	metrics    *MetricsService
	similarity *SimilarityService
	tagging    *AutoTaggingService
	rootcause  *RootCauseService
}

func NewEvaluationService(
	tickets store.TicketStore,
	evals store.EvaluationStore,
	metrics *MetricsService,
	similarity *SimilarityService,
	tagging *AutoTaggingService,
	rootcause *RootCauseService,
) *EvaluationService {
	return &EvaluationService{
		tickets:    tickets,
		evals:      evals,
		metrics:    metrics,
		similarity: similarity,
		tagging:    tagging,
		rootcause:  rootcause,
	}
}

func (s *EvaluationService) GetResult(ctx context.Context, id string) (*models.EvaluationRecord, error) {
	return s.evals.GetResult(ctx, id)
}

// EvaluateSimilarityAccuracy scores the similarity feature against labeled
// ground truth. Precision and recall are micro-averaged over all test
// tickets; accuracy@K counts tickets where at least one relevant item
// appeared in the top K.
func (s *EvaluationService) EvaluateSimilarityAccuracy(ctx context.Context, testTickets []uint, groundTruth map[uint][]uint, topK int) (*models.EvaluationRecord, error) {
	start := time.Now()

	totalHits, totalPredicted, totalRelevant := 0, 0, 0
	var individualResults []models.JSONB

	for _, ticketID := range testTickets {
		ticket, err := s.tickets.GetTicket(ctx, ticketID)
		if err != nil {
			logger.Error("Similarity evaluation skipped a ticket", map[string]interface{}{
				"ticket_id": ticketID,
				"error":     err.Error(),
			})
			continue
		}

		id := ticketID
		predicted := s.similarity.FindSimilar(ctx, ticket.Title+" "+ticket.Description, &id, topK, nil)

		predictedIDs := make(map[uint]struct{}, len(predicted))
		for _, p := range predicted {
			predictedIDs[p.ID] = struct{}{}
		}
		truthIDs := make(map[uint]struct{}, len(groundTruth[ticketID]))
		for _, t := range groundTruth[ticketID] {
			truthIDs[t] = struct{}{}
		}

		hits := 0
		for id := range predictedIDs {
			if _, ok := truthIDs[id]; ok {
				hits++
			}
		}
		totalHits += hits
		totalPredicted += len(predictedIDs)
		totalRelevant += len(truthIDs)

		precision, recall := 0.0, 0.0
		if len(predictedIDs) > 0 {
			precision = float64(hits) / float64(len(predictedIDs))
		}
		if len(truthIDs) > 0 {
			recall = float64(hits) / float64(len(truthIDs))
		}
		hitAtK := 0
		if hits > 0 {
			hitAtK = 1
		}

		individualResults = append(individualResults, models.JSONB{
			"ticket_id":            ticketID,
			"predicted_similar":    keysOf(predictedIDs),
			"ground_truth_similar": keysOf(truthIDs),
			"hits":                 hits,
			"precision":            precision,
			"recall":               recall,
			"accuracy_at_k":        hitAtK,
		})
	}

	precision, recall, f1 := precisionRecallF1(totalHits, totalPredicted, totalRelevant)

	accuracyAtK := 0.0
	if len(individualResults) > 0 {
		hitCount := 0
		for _, r := range individualResults {
			if r["accuracy_at_k"] == 1 {
				hitCount++
			}
		}
		accuracyAtK = float64(hitCount) / float64(len(individualResults))
	}

	responseTime := int(time.Since(start).Milliseconds())
	s.metrics.LogEvent(ctx, Event{
		EventType: "similarity_evaluation_completed",
		AIFeature: "similarity",
		Metadata: models.JSONB{
			"test_tickets_count": len(testTickets),
			"top_k":              topK,
			"precision":          precision,
			"recall":             recall,
			"f1_score":           f1,
			"accuracy_at_k":      accuracyAtK,
		},
		ResponseTimeMs: &responseTime,
	})

	record := &models.EvaluationRecord{
		ID:             uuid.NewString(),
		EvaluationType: models.EvaluationSimilarityAccuracy,
		Metrics: models.JSONB{
			"precision":       precision,
			"recall":          recall,
			"f1_score":        f1,
			"accuracy_at_k":   accuracyAtK,
			"total_hits":      totalHits,
			"total_predicted": totalPredicted,
			"total_relevant":  totalRelevant,
		},
		DetailedResults: models.JSONB{
			"individual_results": individualResults,
			"test_parameters": models.JSONB{
				"top_k":              topK,
				"test_tickets_count": len(testTickets),
			},
		},
		Summary:   fmt.Sprintf("Similarity evaluation: %.1f%% accuracy at top-%d, F1: %.3f", accuracyAtK*100, topK, f1),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.evals.SaveResult(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// EvaluateTaggingAccuracy scores the classifier against labeled tags and
// priorities.
func (s *EvaluationService) EvaluateTaggingAccuracy(ctx context.Context, testTickets []uint, groundTruthTags map[uint][]string, groundTruthPriorities map[uint]string) (*models.EvaluationRecord, error) {
	start := time.Now()

	tagHits, tagPredicted, tagRelevant := 0, 0, 0
	priorityCorrect, priorityTotal := 0, 0
	var individualResults []models.JSONB

	for _, ticketID := range testTickets {
		ticket, err := s.tickets.GetTicket(ctx, ticketID)
		if err != nil {
			logger.Error("Tagging evaluation skipped a ticket", map[string]interface{}{
				"ticket_id": ticketID,
				"error":     err.Error(),
			})
			continue
		}

		result := s.tagging.AutoTag(ctx, ticket.Title, ticket.Description, nil)

		predicted := make(map[string]struct{}, len(result.SuggestedTags))
		for _, tag := range result.SuggestedTags {
			predicted[tag] = struct{}{}
		}
		truth := make(map[string]struct{}, len(groundTruthTags[ticketID]))
		for _, tag := range groundTruthTags[ticketID] {
			truth[tag] = struct{}{}
		}

		hits := 0
		for tag := range predicted {
			if _, ok := truth[tag]; ok {
				hits++
			}
		}
		tagHits += hits
		tagPredicted += len(predicted)
		tagRelevant += len(truth)

		truthPriority := groundTruthPriorities[ticketID]
		if truthPriority == "" {
			truthPriority = string(models.PriorityMedium)
		}
		priorityMatch := strings.EqualFold(result.SuggestedPriority, truthPriority)
		if priorityMatch {
			priorityCorrect++
		}
		priorityTotal++

		individualResults = append(individualResults, models.JSONB{
			"ticket_id":             ticketID,
			"predicted_tags":        result.SuggestedTags,
			"ground_truth_tags":     groundTruthTags[ticketID],
			"predicted_priority":    result.SuggestedPriority,
			"ground_truth_priority": truthPriority,
			"tag_hits":              hits,
			"priority_correct":      priorityMatch,
		})
	}

	precision, recall, f1 := precisionRecallF1(tagHits, tagPredicted, tagRelevant)
	priorityAccuracy := 0.0
	if priorityTotal > 0 {
		priorityAccuracy = float64(priorityCorrect) / float64(priorityTotal)
	}

	responseTime := int(time.Since(start).Milliseconds())
	s.metrics.LogEvent(ctx, Event{
		EventType: "tagging_evaluation_completed",
		AIFeature: "auto_tagging",
		Metadata: models.JSONB{
			"test_tickets_count": len(testTickets),
			"tag_precision":      precision,
			"tag_recall":         recall,
			"tag_f1":             f1,
			"priority_accuracy":  priorityAccuracy,
		},
		ResponseTimeMs: &responseTime,
	})

	record := &models.EvaluationRecord{
		ID:             uuid.NewString(),
		EvaluationType: models.EvaluationTaggingAccuracy,
		Metrics: models.JSONB{
			"tag_precision":     precision,
			"tag_recall":        recall,
			"tag_f1":            f1,
			"priority_accuracy": priorityAccuracy,
			"tag_hits":          tagHits,
			"tag_predicted":     tagPredicted,
			"tag_relevant":      tagRelevant,
			"priority_correct":  priorityCorrect,
			"priority_total":    priorityTotal,
		},
		DetailedResults: models.JSONB{
			"individual_results": individualResults,
			"test_parameters": models.JSONB{
				"test_tickets_count": len(testTickets),
			},
		},
		Summary:   fmt.Sprintf("Tagging evaluation: Tags F1 %.3f, Priority accuracy %.1f%%", f1, priorityAccuracy*100),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.evals.SaveResult(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ConcurrencyResult is the measured outcome for one concurrency level.
type ConcurrencyResult struct {
	ConcurrentUsers   int     `json:"concurrent_users"`
	TotalRequests     int     `json:"total_requests"`
	TotalTimeSeconds  float64 `json:"total_time_seconds"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	P95ResponseTimeMs float64 `json:"p95_response_time_ms"`
	P99ResponseTimeMs float64 `json:"p99_response_time_ms"`
	ThroughputRPS     float64 `json:"throughput_rps"`
	ErrorRate         float64 `json:"error_rate"`
	Errors            int     `json:"errors"`
}

var benchmarkFeatures = []string{"similarity", "rootcause", "auto_tagging"}

// RunPerformanceBenchmark drives the AI features from concurrent simulated
// users and reports latency percentiles, throughput, and error rate per
// concurrency level. Every request is individually accounted: it either
// contributes a latency sample or increments the error count.
func (s *EvaluationService) RunPerformanceBenchmark(ctx context.Context, concurrentUsers []int, requestsPerUser int, testTicketIDs []uint) (*models.EvaluationRecord, error) {
	start := time.Now()

	if len(concurrentUsers) == 0 {
		concurrentUsers = []int{1, 5, 10, 25, 50}
	}
	if requestsPerUser <= 0 {
		requestsPerUser = 10
	}
	if len(testTicketIDs) == 0 {
		ids, err := s.tickets.ListTicketIDs(ctx, 20)
		if err != nil {
			return nil, fmt.Errorf("failed to load benchmark tickets: %w", err)
		}
		testTicketIDs = ids
	}
	if len(testTicketIDs) == 0 {
		return nil, fmt.Errorf("no test tickets available for performance testing")
	}

	var results []ConcurrencyResult
	for _, userCount := range concurrentUsers {
		logger.Info("Benchmark level starting", map[string]interface{}{
			"concurrent_users":  userCount,
			"requests_per_user": requestsPerUser,
		})
		results = append(results, s.runLoadLevel(ctx, userCount, requestsPerUser, testTicketIDs))
	}

	maxThroughput, minErrorRate, avgResponseOverall := 0.0, 1.0, 0.0
	totalRequests := 0
	for _, r := range results {
		if r.ThroughputRPS > maxThroughput {
			maxThroughput = r.ThroughputRPS
		}
		if r.ErrorRate < minErrorRate {
			minErrorRate = r.ErrorRate
		}
		avgResponseOverall += r.AvgResponseTimeMs
		totalRequests += r.TotalRequests
	}
	if len(results) > 0 {
		avgResponseOverall /= float64(len(results))
	}

	maxUsers := 0
	for _, u := range concurrentUsers {
		if u > maxUsers {
			maxUsers = u
		}
	}

	responseTime := int(time.Since(start).Milliseconds())
	s.metrics.LogEvent(ctx, Event{
		EventType: "performance_evaluation_completed",
		AIFeature: "system_performance",
		Metadata: models.JSONB{
			"max_concurrent_users": maxUsers,
			"max_throughput_rps":   maxThroughput,
			"min_error_rate":       minErrorRate,
			"avg_response_time_ms": avgResponseOverall,
		},
		ResponseTimeMs: &responseTime,
	})

	record := &models.EvaluationRecord{
		ID:             uuid.NewString(),
		EvaluationType: models.EvaluationBenchmark,
		Metrics: models.JSONB{
			"max_throughput_rps":          maxThroughput,
			"min_error_rate":              minErrorRate,
			"avg_response_time_ms":        avgResponseOverall,
			"max_concurrent_users_tested": maxUsers,
			"total_requests_tested":       totalRequests,
		},
		DetailedResults: models.JSONB{
			"performance_by_concurrency": results,
			"test_parameters": models.JSONB{
				"concurrent_users_tested": concurrentUsers,
				"requests_per_user":       requestsPerUser,
				"test_tickets_count":      len(testTicketIDs),
			},
		},
		Summary:   fmt.Sprintf("Performance benchmark: %.1f max RPS, %.1fms avg response time", maxThroughput, avgResponseOverall),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.evals.SaveResult(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *EvaluationService) runLoadLevel(ctx context.Context, userCount, requestsPerUser int, ticketIDs []uint) ConcurrencyResult {
	var mu sync.Mutex
	var responseTimes []float64
	errors := 0

	levelStart := time.Now()
	var wg sync.WaitGroup
	for user := 0; user < userCount; user++ {
		wg.Add(1)
		go func(user int) {
			defer wg.Done()
			for request := 0; request < requestsPerUser; request++ {
				feature := benchmarkFeatures[(user+request)%len(benchmarkFeatures)]
				ticketID := ticketIDs[(user*requestsPerUser+request)%len(ticketIDs)]

				requestStart := time.Now()
				err := s.runBenchmarkRequest(ctx, feature, ticketID)
				elapsed := float64(time.Since(requestStart).Microseconds()) / 1000.0

				mu.Lock()
				if err != nil {
					errors++
				} else {
					responseTimes = append(responseTimes, elapsed)
				}
				mu.Unlock()
			}
		}(user)
	}
	wg.Wait()

	totalTime := time.Since(levelStart).Seconds()
	totalRequests := userCount * requestsPerUser

	result := ConcurrencyResult{
		ConcurrentUsers:  userCount,
		TotalRequests:    totalRequests,
		TotalTimeSeconds: totalTime,
		Errors:           errors,
	}
	if len(responseTimes) > 0 {
		sort.Float64s(responseTimes)
		sum := 0.0
		for _, t := range responseTimes {
			sum += t
		}
		result.AvgResponseTimeMs = sum / float64(len(responseTimes))
		result.P95ResponseTimeMs = percentile(responseTimes, 0.95)
		result.P99ResponseTimeMs = percentile(responseTimes, 0.99)
		result.ThroughputRPS = float64(totalRequests) / totalTime
		result.ErrorRate = float64(errors) / float64(totalRequests)
	} else {
		result.ErrorRate = 1.0
	}
	return result
}

func (s *EvaluationService) runBenchmarkRequest(ctx context.Context, feature string, ticketID uint) error {
	switch feature {
	case "similarity":
		ticket, err := s.tickets.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		id := ticketID
		s.similarity.FindSimilar(ctx, ticket.Title+" "+ticket.Description, &id, 3, nil)
		return nil
	case "rootcause":
		_, err := s.rootcause.AnalyzeTicket(ctx, ticketID, nil, true)
		return err
	default:
		ticket, err := s.tickets.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		result := s.tagging.AutoTag(ctx, ticket.Title, ticket.Description, nil)
		if result.Error != "" {
			return fmt.Errorf("%s", result.Error)
		}
		return nil
	}
}

// percentile assumes a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func precisionRecallF1(hits, predicted, relevant int) (precision, recall, f1 float64) {
	if predicted > 0 {
		precision = float64(hits) / float64(predicted)
	}
	if relevant > 0 {
		recall = float64(hits) / float64(relevant)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

func keysOf(set map[uint]struct{}) []uint {
	keys := make([]uint, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
