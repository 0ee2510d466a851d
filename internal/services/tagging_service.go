package services

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/triagedesk/backend/internal/embedding"
	"github.com/triagedesk/backend/internal/logger"
	"github.com/triagedesk/backend/internal/models"
)

// Tag and priority descriptors are compared against ticket text in embedding
// space. Descriptions are deliberately verbose: the richer the description,
// the better the semantic match.
var tagDescriptions = map[string]string{
	"database":       "Database related issues including SQL queries, connections, timeouts, data integrity, migration problems, deadlocks, performance issues, and database server connectivity problems",
	"frontend":       "User interface and client-side issues including React components, CSS styling, HTML markup, JavaScript errors, responsive design, browser compatibility, and visual rendering problems",
	"backend":        "Server-side application issues including API endpoints, business logic, microservices, server configuration, application crashes, and backend processing errors",
	"infrastructure": "DevOps and infrastructure issues including Docker containers, Kubernetes deployment, cloud services, AWS configuration, CI/CD pipelines, build failures, and deployment problems",
	"security":       "Security vulnerabilities and authentication issues including login problems, authorization failures, permission errors, data breaches, XSS attacks, and security configuration problems",
	"performance":    "Performance and optimization issues including slow response times, high memory usage, CPU bottlenecks, latency problems, and system resource optimization needs",
	"bug":            "Software defects and errors including application crashes, exceptions, incorrect behavior, broken functionality, and unexpected system failures",
	"feature":        "New functionality requests and enhancements including feature additions, improvements to existing functionality, and system capability expansions",
	"ui":             "User interface and user experience issues including layout problems, interaction bugs, accessibility issues, and visual design concerns",
	"api":            "Application programming interface issues including REST API problems, GraphQL errors, API authentication, rate limiting, and integration difficulties",
	"networking":     "Network connectivity and communication issues including timeouts, DNS problems, firewall issues, and service communication failures",
	"testing":        "Testing related issues including unit test failures, integration test problems, test environment setup, and quality assurance concerns",
	"documentation":  "Documentation issues including missing docs, outdated information, unclear instructions, and documentation maintenance needs",
	"configuration":  "Configuration and setup issues including environment variables, application settings, deployment configuration, and system setup problems",
}

var priorityDescriptions = map[models.TicketPriority]string{
	models.PriorityCritical: "Critical production outages, system completely down, database failures, deadlocks, data loss, security breaches, blocking all users, urgent business impact, crashes, server failures, complete service unavailability",
	models.PriorityHigh:     "Major functionality broken, database timeouts, significant errors, affecting many users, blocking important workflows, significant business impact, needs immediate attention, performance degradation",
	models.PriorityMedium:   "Moderate impact issues, affecting some users, workarounds available, standard business priority, regular development cycle, minor bugs, slow performance",
	models.PriorityLow:      "Minor issues, cosmetic problems, feature requests, enhancements, nice-to-have improvements, low business impact, documentation updates",
}

// priorityOrder fixes iteration order so ties resolve the same way every run.
var priorityOrder = []models.TicketPriority{
	models.PriorityCritical,
	models.PriorityHigh,
	models.PriorityMedium,
	models.PriorityLow,
}

type priorityRule struct {
	keywords []string
	priority models.TicketPriority
	weight   int
}

var priorityRules = []priorityRule{
	{
		keywords: []string{"production", "outage", "down", "critical", "urgent", "data loss", "security breach"},
		priority: models.PriorityCritical,
		weight:   4,
	},
	{
		keywords: []string{"blocking", "blocker", "cannot", "unable", "broken", "major"},
		priority: models.PriorityHigh,
		weight:   3,
	},
	{
		keywords: []string{"performance", "slow", "timeout", "error", "issue"},
		priority: models.PriorityMedium,
		weight:   1,
	},
	{
		keywords: []string{"enhancement", "feature", "improvement", "minor", "cosmetic"},
		priority: models.PriorityLow,
		weight:   -1,
	},
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {},
	"might": {}, "can": {}, "must": {}, "this": {}, "that": {},
	"these": {}, "those": {},
}

var nonKeywordChars = regexp.MustCompile(`[^a-z0-9\s\-]`)

// TagScore is one tag suggestion with its semantic confidence.
type TagScore struct {
	TagName         string  `json:"tag_name"`
	Confidence      float64 `json:"confidence"`
	SimilarityScore float64 `json:"similarity_score"`
	Method          string  `json:"method"`
}

// MatchedRule records which keyword rule fired during priority fallback.
type MatchedRule struct {
	Keywords []string `json:"keywords"`
	Weight   int      `json:"weight"`
	Score    int      `json:"score"`
}

// PriorityAnalysis is the outcome of the hybrid priority classifier.
type PriorityAnalysis struct {
	SuggestedPriority models.TicketPriority `json:"suggested_priority"`
	Confidence        float64               `json:"confidence"`
	Method            string                `json:"method"`
	Similarities      map[string]float64    `json:"similarities,omitempty"`
	BestMatch         string                `json:"best_match,omitempty"`
	Score             int                   `json:"score,omitempty"`
	MatchedRules      []MatchedRule         `json:"matched_rules,omitempty"`
}

// TaggingResult is the full auto-tagging response for one ticket.
type TaggingResult struct {
	SuggestedTags     []string           `json:"suggested_tags"`
	SuggestedPriority string             `json:"suggested_priority"`
	ConfidenceScores  map[string]float64 `json:"confidence_scores"`
	TagAnalysis       []TagScore         `json:"tag_analysis,omitempty"`
	PriorityAnalysis  *PriorityAnalysis  `json:"priority_analysis,omitempty"`
	AnalysisMethod    string             `json:"analysis_method"`
	Error             string             `json:"error,omitempty"`
}

// AutoTaggingService classifies tickets into tags and a priority using
// embedding similarity against the descriptors, with a keyword fallback for
// priority when the semantic signal is weak.
type AutoTaggingService struct {
	cache   *embedding.Cache
	metrics *MetricsService

	tagVectors      map[string][]float32
	priorityVectors map[models.TicketPriority][]float32
}

// NewAutoTaggingService embeds every descriptor up front so classification
// requests only pay for the ticket text.
func NewAutoTaggingService(ctx context.Context, cache *embedding.Cache, metrics *MetricsService) (*AutoTaggingService, error) {
	s := &AutoTaggingService{
		cache:           cache,
		metrics:         metrics,
		tagVectors:      make(map[string][]float32, len(tagDescriptions)),
		priorityVectors: make(map[models.TicketPriority][]float32, len(priorityDescriptions)),
	}

	for tag, description := range tagDescriptions {
		vec, err := cache.Embed(ctx, description)
		if err != nil {
			return nil, err
		}
		s.tagVectors[tag] = vec
	}
	for priority, description := range priorityDescriptions {
		vec, err := cache.Embed(ctx, description)
		if err != nil {
			return nil, err
		}
		s.priorityVectors[priority] = vec
	}

	logger.Info("Descriptor embeddings precomputed", map[string]interface{}{
		"tags":       len(s.tagVectors),
		"priorities": len(s.priorityVectors),
	})
	return s, nil
}

// AutoTag analyzes title and description and suggests tags plus a priority.
// Failures degrade to an empty suggestion set with a medium priority.
func (s *AutoTaggingService) AutoTag(ctx context.Context, title, description string, userID *uint) *TaggingResult {
	start := time.Now()
	text := strings.TrimSpace(title + " " + description)

	tags, err := s.analyzeTags(ctx, text)
	if err != nil {
		return s.degradedResult(err)
	}
	priority, err := s.analyzePriority(ctx, text, title)
	if err != nil {
		return s.degradedResult(err)
	}

	tagNames := make([]string, 0, len(tags))
	confidenceScores := make(map[string]float64, len(tags)+1)
	for _, tag := range tags {
		tagNames = append(tagNames, tag.TagName)
		confidenceScores[tag.TagName] = tag.Confidence
	}
	confidenceScores["priority_"+string(priority.SuggestedPriority)] = priority.Confidence

	result := &TaggingResult{
		SuggestedTags:     tagNames,
		SuggestedPriority: string(priority.SuggestedPriority),
		ConfidenceScores:  confidenceScores,
		TagAnalysis:       tags,
		PriorityAnalysis:  priority,
		AnalysisMethod:    "semantic_embedding",
	}

	avgConfidence := 0.0
	if len(tags) > 0 {
		for _, tag := range tags {
			avgConfidence += tag.Confidence
		}
		avgConfidence /= float64(len(tags))
	}
	responseTime := int(time.Since(start).Milliseconds())
	s.metrics.LogEvent(ctx, Event{
		EventType: "auto_tagging_suggestions_generated",
		AIFeature: "auto_tagging",
		UserID:    userID,
		Metadata: models.JSONB{
			"suggested_tags":     tagNames,
			"suggested_priority": result.SuggestedPriority,
			"analysis_method":    result.AnalysisMethod,
			"tags_count":         len(tags),
			"avg_tag_confidence": avgConfidence,
		},
		ResponseTimeMs: &responseTime,
	})

	return result
}

func (s *AutoTaggingService) degradedResult(err error) *TaggingResult {
	logger.Error("Auto-tagging analysis failed", map[string]interface{}{
		"error": err.Error(),
	})
	return &TaggingResult{
		SuggestedTags:     []string{},
		SuggestedPriority: string(models.PriorityMedium),
		ConfidenceScores:  map[string]float64{},
		AnalysisMethod:    "error",
		Error:             err.Error(),
	}
}

const (
	tagThreshold = 0.3
	maxTags      = 6
)

func (s *AutoTaggingService) analyzeTags(ctx context.Context, text string) ([]TagScore, error) {
	if strings.TrimSpace(text) == "" {
		return []TagScore{}, nil
	}

	textVec, err := s.cache.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	scores := make([]TagScore, 0, len(tagDescriptions))
	for tag, vec := range s.tagVectors {
		score := embedding.Cosine(textVec, vec)
		if score >= tagThreshold {
			scores = append(scores, TagScore{
				TagName:         tag,
				Confidence:      round1(score * 100),
				SimilarityScore: score,
				Method:          "semantic_embedding",
			})
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Confidence != scores[j].Confidence {
			return scores[i].Confidence > scores[j].Confidence
		}
		return scores[i].TagName < scores[j].TagName
	})
	if len(scores) > maxTags {
		scores = scores[:maxTags]
	}
	return scores, nil
}

func (s *AutoTaggingService) analyzePrioritySemantic(ctx context.Context, text string) (*PriorityAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return &PriorityAnalysis{
			SuggestedPriority: models.PriorityMedium,
			Confidence:        30.0,
			Method:            "default",
		}, nil
	}

	textVec, err := s.cache.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	similarities := make(map[string]float64, len(priorityOrder))
	best := models.PriorityMedium
	bestScore := -2.0
	for _, priority := range priorityOrder {
		score := embedding.Cosine(textVec, s.priorityVectors[priority])
		similarities[string(priority)] = round1(score * 100)
		if score > bestScore {
			bestScore = score
			best = priority
		}
	}

	return &PriorityAnalysis{
		SuggestedPriority: best,
		Confidence:        round1(bestScore * 100),
		Method:            "semantic_embedding",
		Similarities:      similarities,
		BestMatch:         string(best),
	}, nil
}

func (s *AutoTaggingService) analyzePriorityKeywords(keywords []string, title string) *PriorityAnalysis {
	allText := strings.ToLower(title) + " " + strings.Join(keywords, " ")

	score := 0
	var matched []MatchedRule
	for _, rule := range priorityRules {
		var hits []string
		for _, keyword := range rule.keywords {
			if strings.Contains(allText, keyword) {
				hits = append(hits, keyword)
			}
		}
		if len(hits) > 0 {
			ruleScore := len(hits) * rule.weight
			score += ruleScore
			matched = append(matched, MatchedRule{
				Keywords: hits,
				Weight:   rule.weight,
				Score:    ruleScore,
			})
		}
	}

	var priority models.TicketPriority
	var confidence float64
	switch {
	case score >= 4:
		priority = models.PriorityCritical
		confidence = minFloat(95, float64(70+score*5))
	case score >= 3:
		priority = models.PriorityHigh
		confidence = minFloat(90, float64(60+score*5))
	case score >= 1:
		priority = models.PriorityMedium
		confidence = minFloat(80, float64(50+score*10))
	case score <= -2:
		priority = models.PriorityLow
		confidence = minFloat(80, float64(40-score*10))
	default:
		priority = models.PriorityMedium
		confidence = 30
	}

	return &PriorityAnalysis{
		SuggestedPriority: priority,
		Confidence:        round1(confidence),
		Method:            "keyword_matching",
		Score:             score,
		MatchedRules:      matched,
	}
}

// analyzePriority runs the semantic classifier and falls back to keyword
// rules only when the semantic confidence is weak (<25). The keyword result
// wins only when it beats the semantic confidence by more than 10 points.
func (s *AutoTaggingService) analyzePriority(ctx context.Context, text, title string) (*PriorityAnalysis, error) {
	fullText := strings.TrimSpace(title + " " + text)

	semantic, err := s.analyzePrioritySemantic(ctx, fullText)
	if err != nil {
		return nil, err
	}

	if semantic.Confidence < 25 {
		keywords := extractKeywords(fullText)
		keyword := s.analyzePriorityKeywords(keywords, title)
		if keyword.Confidence > semantic.Confidence+10 {
			return keyword, nil
		}
	}
	return semantic, nil
}

func extractKeywords(text string) []string {
	if text == "" {
		return nil
	}

	text = nonKeywordChars.ReplaceAllString(strings.ToLower(text), " ")

	var keywords []string
	for _, word := range strings.Fields(text) {
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
