package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/triagedesk/backend/internal/llm"
	"github.com/triagedesk/backend/internal/logger"
	"github.com/triagedesk/backend/internal/models"
	"github.com/triagedesk/backend/internal/store"
)

type analysisPattern struct {
	pattern     []string
	rootCause   string
	suggestions []string
}

var analysisPatterns = []analysisPattern{
	{
		pattern:   []string{"timeout", "connection", "database", "db"},
		rootCause: "Database connectivity issues",
		suggestions: []string{
			"Check database server status and availability",
			"Review connection pool configuration",
			"Verify network connectivity between services",
			"Check for database locks or long-running queries",
		},
	},
	{
		pattern:   []string{"memory", "heap", "oom", "out of memory"},
		rootCause: "Memory exhaustion",
		suggestions: []string{
			"Analyze memory usage patterns and heap dumps",
			"Review application memory configuration",
			"Check for memory leaks in recent code changes",
			"Scale up instance memory or optimize memory usage",
		},
	},
	{
		pattern:   []string{"404", "not found", "missing", "endpoint"},
		rootCause: "Missing resources or configuration",
		suggestions: []string{
			"Verify API endpoint configuration",
			"Check routing table and URL mappings",
			"Ensure required resources are deployed",
			"Review recent deployment changes",
		},
	},
	{
		pattern:   []string{"500", "internal server", "crash", "exception"},
		rootCause: "Application runtime error",
		suggestions: []string{
			"Review application logs for stack traces",
			"Check for recent code changes or deployments",
			"Verify environment configuration",
			"Test error reproduction in staging environment",
		},
	},
	{
		pattern:   []string{"slow", "performance", "latency", "response time"},
		rootCause: "Performance degradation",
		suggestions: []string{
			"Analyze performance metrics and bottlenecks",
			"Review database query performance",
			"Check system resource utilization",
			"Optimize slow queries or inefficient code paths",
		},
	},
	{
		pattern:   []string{"auth", "login", "unauthorized", "permission"},
		rootCause: "Authentication or authorization issues",
		suggestions: []string{
			"Verify user credentials and permissions",
			"Check authentication service status",
			"Review access control configuration",
			"Validate token expiration and refresh logic",
		},
	},
}

var unknownCauseSuggestions = []string{
	"Review ticket details and error messages carefully",
	"Check system logs around the time of the issue",
	"Contact relevant team members for additional context",
}

var unparsedResponseSuggestions = []string{
	"Review the full analysis provided by the AI",
	"Investigate the symptoms described in the ticket",
	"Check system logs and error messages",
}

// ResolvedTicketRef points at a similar resolved ticket used as evidence.
type ResolvedTicketRef struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// RootCauseFinding is the pipeline's answer. AnalysisMethod is one of
// "llm", "pattern_matching", or "llm_unparsed"; ConfidenceScore always
// lands in [0.1, 1.0] for LLM results and is fixed for the fallbacks.
type RootCauseFinding struct {
	TicketID               uint                `json:"ticket_id"`
	AnalysisTimestamp      time.Time           `json:"analysis_timestamp"`
	RootCause              string              `json:"root_cause"`
	ConfidenceScore        float64             `json:"confidence_score"`
	Suggestions            []string            `json:"suggestions"`
	SimilarResolvedTickets []ResolvedTicketRef `json:"similar_resolved_tickets"`
	KeywordsAnalyzed       []string            `json:"keywords_analyzed"`
	AnalysisMethod         string              `json:"analysis_method"`
	LLMUsed                bool                `json:"llm_used"`
	PatternMatched         []string            `json:"pattern_matched,omitempty"`
}

// RootCauseService runs the layered analysis pipeline: gather context,
// ask the LLM, degrade to pattern matching when the LLM is unusable.
type RootCauseService struct {
	tickets    store.TicketStore
	comments   store.CommentStore
	failures   store.CIFailureStore
	similarity *SimilarityService
	github     *GitHubService
	gateway    *llm.Gateway
	metrics    *MetricsService
}

func NewRootCauseService(
	tickets store.TicketStore,
	comments store.CommentStore,
	failures store.CIFailureStore,
	similarity *SimilarityService,
	github *GitHubService,
	gateway *llm.Gateway,
	metrics *MetricsService,
) *RootCauseService {
	return &RootCauseService{
		tickets:    tickets,
		comments:   comments,
		failures:   failures,
		similarity: similarity,
		github:     github,
		gateway:    gateway,
		metrics:    metrics,
	}
}

// AnalyzeTicket produces a root-cause finding for the ticket. Failures to
// load the subject ticket or its comments are returned as errors; similar
// tickets and commit context degrade to a weaker analysis instead.
func (s *RootCauseService) AnalyzeTicket(ctx context.Context, ticketID uint, userID *uint, useLLM bool) (*RootCauseFinding, error) {
	start := time.Now()

	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		responseTime := int(time.Since(start).Milliseconds())
		s.metrics.LogEvent(ctx, Event{
			EventType:      "rootcause_error",
			AIFeature:      "rootcause",
			TicketID:       &ticketID,
			UserID:         userID,
			Metadata:       models.JSONB{"error": err.Error()},
			ResponseTimeMs: &responseTime,
		})
		return nil, err
	}

	text := ticket.Title + " " + ticket.Description
	keywords := extractKeywords(text)

	// Context gathering fans out; each branch degrades independently.
	var recentComments []models.Comment
	var similarResolved []SimilarTicket
	var commitContext *CommitContext

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		comments, err := s.comments.RecentComments(gctx, ticketID, 3)
		if err != nil {
			return fmt.Errorf("failed to load recent comments for ticket %d: %w", ticketID, err)
		}
		recentComments = comments
		return nil
	})
	g.Go(func() error {
		similarResolved = s.similarResolvedTickets(gctx, text, ticketID, 3)
		return nil
	})
	g.Go(func() error {
		commitContext = s.commitContextIfApplicable(gctx, ticketID)
		return nil
	})
	if err := g.Wait(); err != nil {
		responseTime := int(time.Since(start).Milliseconds())
		s.metrics.LogEvent(ctx, Event{
			EventType:      "rootcause_error",
			AIFeature:      "rootcause",
			TicketID:       &ticketID,
			UserID:         userID,
			Metadata:       models.JSONB{"error": err.Error()},
			ResponseTimeMs: &responseTime,
		})
		return nil, err
	}

	var finding *RootCauseFinding
	if useLLM {
		finding, err = s.llmAnalyze(ctx, ticket, recentComments, similarResolved, commitContext)
		if err != nil {
			logger.Warn("LLM analysis failed, falling back to pattern matching", map[string]interface{}{
				"ticket_id": ticketID,
				"error":     err.Error(),
			})
			finding = nil
		}
	}
	if finding == nil {
		finding = s.patternAnalyze(keywords)
	}

	finding.TicketID = ticketID
	finding.AnalysisTimestamp = time.Now().UTC()
	finding.KeywordsAnalyzed = firstN(keywords, 10)
	finding.LLMUsed = finding.AnalysisMethod == "llm"
	finding.SimilarResolvedTickets = make([]ResolvedTicketRef, 0, len(similarResolved))
	for _, similar := range similarResolved {
		finding.SimilarResolvedTickets = append(finding.SimilarResolvedTickets, ResolvedTicketRef{
			ID:     similar.ID,
			Title:  similar.Title,
			Status: similar.Status,
		})
	}

	responseTime := int(time.Since(start).Milliseconds())
	s.metrics.LogEvent(ctx, Event{
		EventType: "rootcause_requested",
		AIFeature: "rootcause",
		TicketID:  &ticketID,
		UserID:    userID,
		Metadata: models.JSONB{
			"confidence_score":      finding.ConfidenceScore,
			"pattern_matched":       len(finding.PatternMatched) > 0,
			"keywords_count":        len(keywords),
			"similar_tickets_found": len(similarResolved),
			"analysis_method":       finding.AnalysisMethod,
		},
		ResponseTimeMs: &responseTime,
	})

	return finding, nil
}

// similarResolvedTickets over-fetches then filters down to resolved tickets.
func (s *RootCauseService) similarResolvedTickets(ctx context.Context, text string, ticketID uint, limit int) []SimilarTicket {
	candidates := s.similarity.FindSimilar(ctx, text, &ticketID, limit*3, nil)

	resolved := make([]SimilarTicket, 0, limit)
	for _, candidate := range candidates {
		if candidate.Status == string(models.StatusResolved) || candidate.Status == string(models.StatusClosed) {
			resolved = append(resolved, candidate)
			if len(resolved) == limit {
				break
			}
		}
	}
	return resolved
}

func (s *RootCauseService) commitContextIfApplicable(ctx context.Context, ticketID uint) *CommitContext {
	failure, err := s.failures.FailureForTicket(ctx, ticketID)
	if err != nil {
		logger.Warn("Could not check for CI failure", map[string]interface{}{
			"ticket_id": ticketID,
			"error":     err.Error(),
		})
		return &CommitContext{Available: false, Error: err.Error()}
	}
	if failure == nil || failure.Repository == nil || failure.Repository.FullName == "" {
		return &CommitContext{Available: false}
	}

	context := s.github.GetCommitContext(ctx, failure.Repository.FullName, failure.Logs, true)
	if context.Available {
		context.CIFailure = &CIFailureInfo{
			Workflow:      failure.WorkflowName,
			CommitSHA:     failure.CommitSHA,
			Branch:        failure.BranchName,
			FailureReason: failure.FailureReason,
		}
		logger.Info("Commit context retrieved", map[string]interface{}{
			"ticket_id":  ticketID,
			"repository": failure.Repository.FullName,
		})
	}
	return context
}

func (s *RootCauseService) patternAnalyze(keywords []string) *RootCauseFinding {
	var best *analysisPattern
	bestScore := 0

	for i := range analysisPatterns {
		candidate := &analysisPatterns[i]
		matches := 0
		for _, keyword := range keywords {
			for _, patternWord := range candidate.pattern {
				if strings.Contains(keyword, patternWord) {
					matches++
					break
				}
			}
		}
		if matches > bestScore {
			bestScore = matches
			best = candidate
		}
	}

	if best == nil {
		return &RootCauseFinding{
			RootCause:       "Unknown - requires manual investigation",
			ConfidenceScore: 0.2,
			Suggestions:     unknownCauseSuggestions,
			AnalysisMethod:  "pattern_matching",
		}
	}
	return &RootCauseFinding{
		RootCause:       best.rootCause,
		ConfidenceScore: 0.8,
		Suggestions:     best.suggestions,
		AnalysisMethod:  "pattern_matching",
		PatternMatched:  best.pattern,
	}
}

func (s *RootCauseService) llmAnalyze(
	ctx context.Context,
	ticket *models.Ticket,
	recentComments []models.Comment,
	similarResolved []SimilarTicket,
	commitContext *CommitContext,
) (*RootCauseFinding, error) {
	ticketContext := buildTicketContext(ticket, recentComments, similarResolved, commitContext)

	systemPrompt := rootCauseSystemPrompt
	if commitContext != nil && commitContext.Available {
		systemPrompt = rootCauseSystemPromptWithCommits
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(rootCauseUserPromptFormat, ticketContext)},
	}

	response, err := s.gateway.Generate(ctx, messages, 1000, 0.3)
	if err != nil {
		return nil, err
	}
	return parseLLMAnalysis(response), nil
}

// parseLLMAnalysis enforces the JSON response contract. A response that
// fails validation is kept as a truncated free-text root cause with fixed
// 0.6 confidence under the "llm_unparsed" method.
func parseLLMAnalysis(response string) *RootCauseFinding {
	trimmed := strings.TrimSpace(response)

	var parsed struct {
		RootCause       *string     `json:"root_cause"`
		ConfidenceScore *float64    `json:"confidence_score"`
		Suggestions     interface{} `json:"suggestions"`
	}
	err := json.Unmarshal([]byte(trimmed), &parsed)
	if err == nil && parsed.RootCause != nil && parsed.ConfidenceScore != nil && parsed.Suggestions != nil {
		var suggestions []string
		switch v := parsed.Suggestions.(type) {
		case []interface{}:
			for _, item := range v {
				suggestions = append(suggestions, fmt.Sprint(item))
			}
		default:
			suggestions = []string{fmt.Sprint(v)}
		}

		confidence := *parsed.ConfidenceScore
		if confidence < 0.1 {
			confidence = 0.1
		}
		if confidence > 1.0 {
			confidence = 1.0
		}

		return &RootCauseFinding{
			RootCause:       *parsed.RootCause,
			ConfidenceScore: confidence,
			Suggestions:     suggestions,
			AnalysisMethod:  "llm",
		}
	}

	logger.Warn("Failed to parse LLM analysis response", map[string]interface{}{
		"response_prefix": truncate(trimmed, 200),
	})

	return &RootCauseFinding{
		RootCause:       ellipsize(trimmed, 200),
		ConfidenceScore: 0.6,
		Suggestions:     unparsedResponseSuggestions,
		AnalysisMethod:  "llm_unparsed",
	}
}

func buildTicketContext(
	ticket *models.Ticket,
	recentComments []models.Comment,
	similarResolved []SimilarTicket,
	commitContext *CommitContext,
) string {
	var parts []string

	teamName := "unknown"
	if ticket.Team != nil {
		teamName = ticket.Team.Name
	}
	description := ticket.Description
	if description == "" {
		description = "No description provided"
	}
	parts = append(parts,
		"Title: "+ticket.Title,
		"Description: "+description,
		"Status: "+string(ticket.Status),
		"Team: "+teamName,
	)

	if commitContext != nil && commitContext.Available {
		parts = append(parts, "\n=== CODE ANALYSIS ===")
		parts = append(parts, "Repository: "+commitContext.Repository.Name)
		parts = append(parts, "Primary Language: "+orUnknown(commitContext.Repository.Language))
		parts = append(parts, "Tech Stack: "+strings.Join(commitContext.Repository.TechStack, ", "))

		if commitContext.CIFailure != nil {
			parts = append(parts,
				"\nCI Failure Details:",
				"- Workflow: "+orUnknown(commitContext.CIFailure.Workflow),
				"- Commit SHA: "+orUnknown(commitContext.CIFailure.CommitSHA),
				"- Branch: "+orUnknown(commitContext.CIFailure.Branch),
				"- Failure Reason: "+orUnknown(commitContext.CIFailure.FailureReason),
			)
		}

		if analysis := commitContext.CommitAnalysis; analysis != nil {
			parts = append(parts, "\nComplete Repository Commit Analysis:")
			parts = append(parts, fmt.Sprintf("- Total commits analyzed: %d", analysis.TotalCommits))

			if len(analysis.RiskIndicators) > 0 {
				parts = append(parts, "- Risk Indicators:")
				for _, risk := range firstN(analysis.RiskIndicators, 3) {
					parts = append(parts, "  * "+risk)
				}
			}
			if len(analysis.Commits) > 0 {
				parts = append(parts, "- Latest Commits:")
				for _, commit := range analysis.Commits {
					parts = append(parts, fmt.Sprintf("  * %s: %s...", commit.SHA, truncate(commit.Message, 100)))

					var highRiskFiles []string
					for _, file := range commit.Files {
						if file.RiskLevel == "high" {
							highRiskFiles = append(highRiskFiles, file.Filename)
						}
					}
					if len(highRiskFiles) > 0 {
						parts = append(parts, "    High-risk files: "+strings.Join(firstN(highRiskFiles, 3), ", "))
					}
				}
			}
		}

		if correlation := commitContext.LogCorrelation; correlation != nil && len(correlation.LikelyCulprits) > 0 {
			parts = append(parts, "\nLikely Culprit Commits (based on log correlation):")
			for _, culprit := range firstN(correlation.LikelyCulprits, 2) {
				parts = append(parts,
					fmt.Sprintf("- %s (confidence: %d%%)", culprit.Commit.SHA, culprit.ConfidenceScore),
					fmt.Sprintf("  Message: %s...", truncate(culprit.Commit.Message, 80)),
					"  Reasons: "+strings.Join(firstN(culprit.Reasons, 2), "; "),
				)
			}
		}

		if risk := commitContext.RiskAssessment; risk != nil {
			parts = append(parts, fmt.Sprintf("\nOverall Risk Assessment: %s (score: %d)", risk.Level, risk.Score))
		}
		if len(commitContext.SuggestedFocusAreas) > 0 {
			parts = append(parts, "\nSuggested Focus Areas:")
			for _, area := range firstN(commitContext.SuggestedFocusAreas, 3) {
				parts = append(parts, "- "+area)
			}
		}

		if codebase := commitContext.FullCodebase; codebase != nil {
			parts = append(parts,
				"\n=== COMPLETE REPOSITORY CODE ===",
				"Repository: "+codebase.Repository,
				"Branch: "+codebase.Branch,
				fmt.Sprintf("Total files: %d", codebase.TotalFiles),
				fmt.Sprintf("Total size: %d bytes", codebase.TotalSize),
			)
			if len(codebase.Structure) > 0 {
				parts = append(parts, "\nDirectory Structure:")
				for _, item := range firstN(codebase.Structure, 20) {
					parts = append(parts, "  "+item)
				}
			}
			if len(codebase.Files) > 0 {
				parts = append(parts, "\nFile Contents:")
				for _, path := range sortedFilePaths(codebase.Files) {
					file := codebase.Files[path]
					if file.Truncated || file.Error != "" {
						parts = append(parts, fmt.Sprintf("\n--- %s (TRUNCATED) ---", path))
						continue
					}
					parts = append(parts, "\n--- "+path+" ---", file.Content)
				}
			}
		}
	}

	if len(recentComments) > 0 {
		parts = append(parts, "\n=== RECENT COMMENTS ===")
		for _, comment := range recentComments {
			parts = append(parts, "- "+truncate(comment.Content, 200)+"...")
		}
	}

	if len(similarResolved) > 0 {
		parts = append(parts, "\n=== SIMILAR RESOLVED TICKETS ===")
		for _, similar := range firstN(similarResolved, 2) {
			parts = append(parts, "- "+similar.Title)
		}
	}

	return strings.Join(parts, "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func sortedFilePaths(files map[string]CodebaseFile) []string {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	// Importance order mirrors the fetch order.
	sort.SliceStable(paths, func(i, j int) bool {
		si, sj := fileImportanceScore(paths[i]), fileImportanceScore(paths[j])
		if si != sj {
			return si > sj
		}
		return paths[i] < paths[j]
	})
	return paths
}
